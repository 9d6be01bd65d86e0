// Command writer researches, drafts and edits an article on a topic.
//
//	writer [-out dir] [-json] [-final] [-orchestrate] <topic...>
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/hupe1980/writermesh"
	"github.com/hupe1980/writermesh/aggregate"
	"github.com/hupe1980/writermesh/artifact"
	"github.com/hupe1980/writermesh/core"
	"github.com/hupe1980/writermesh/internal/bootstrap"
	"github.com/hupe1980/writermesh/internal/config"
	"github.com/hupe1980/writermesh/writer"
)

func main() {
	outDir := flag.String("out", "", "directory to export research_summary.txt, draft_article.txt and final_article.{txt,md} into")
	asJSON := flag.Bool("json", false, "print the result mapping as JSON")
	finalOnly := flag.Bool("final", false, "print only the output of the latest stage that produced one")
	orchestrate := flag.Bool("orchestrate", false, "route the request through the orchestrator agent")
	flag.Parse()

	topic := strings.Join(flag.Args(), " ")
	if strings.TrimSpace(topic) == "" {
		die("usage: writer [-out dir] [-json] [-final] [-orchestrate] <topic...>")
	}

	cfg, err := config.Load()
	if err != nil {
		die("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := bootstrap.NewContainer(ctx, cfg, func(o *bootstrap.Options) {
		o.LogOutput = os.Stderr
		o.Pipeline = func(o *writermesh.Options) {
			if !*asJSON && !*finalOnly {
				o.OnEvent = progress
			}
		}
	})
	if err != nil {
		die("bootstrap: %v", err)
	}

	defer func() { _ = c.Close(context.Background()) }()

	if *orchestrate {
		runOrchestrator(ctx, c, topic)
		return
	}

	result := c.Pipeline.Run(ctx, topic)

	if *outDir != "" && result.RunID != "" {
		store := artifact.NewDirStore(*outDir)

		written, err := artifact.Export(store, result)
		if err != nil {
			color.Red("export failed: %v", err)
		}

		for _, name := range written {
			color.Cyan("saved %s", store.Path(result.RunID, name))
		}
	}

	switch {
	case *asJSON:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result.Map())
	case *finalOnly:
		if text, ok := result.Last(); ok {
			fmt.Println(text)
		}
	default:
		printResult(result)
	}

	if result.Failure != nil {
		os.Exit(1)
	}
}

func runOrchestrator(ctx context.Context, c *bootstrap.Container, request string) {
	o, err := writermesh.NewOrchestrator(c.Model, c.Pipeline)
	if err != nil {
		die("orchestrator: %v", err)
	}

	answer, err := o.Ask(ctx, request)
	if err != nil {
		die("orchestrator: %v", err)
	}

	fmt.Println(answer)
}

var stageLabels = map[string]string{
	writer.Researcher: "Researching the topic",
	writer.Writer:     "Writing the article",
	writer.Editor:     "Editing and refining",
}

func progress(ev core.Event) {
	if !ev.IsFinalResponse() {
		return
	}

	if label, ok := stageLabels[ev.Author]; ok {
		color.Green("done: %s", label)
	}
}

func printResult(r aggregate.Result) {
	sections := []struct{ stage, title string }{
		{writer.Researcher, "Research Summary"},
		{writer.Writer, "Draft Article"},
		{writer.Editor, "Final Article"},
	}

	for _, s := range sections {
		text, ok := r.Output(s.stage)
		if !ok {
			continue
		}

		color.New(color.FgYellow, color.Bold).Printf("\n== %s ==\n", s.title)
		fmt.Println(text)
	}

	if r.Warning != "" {
		color.Yellow("\nwarning: %s", r.Warning)
	}

	if r.Failure != nil {
		color.Red("\nerror: %s", r.Failure.Message)
	}
}

func die(format string, args ...any) {
	color.Red(format, args...)
	os.Exit(1)
}
