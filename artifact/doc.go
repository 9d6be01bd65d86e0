// Package artifact stores the downloadable outputs of a pipeline run.
//
// A Store keeps raw bytes under (runID, name). Export writes the stage
// outputs of a result as the text and markdown files offered for download.
// InMemoryStore serves tests and single-process use; DirStore writes to the
// local filesystem.
package artifact
