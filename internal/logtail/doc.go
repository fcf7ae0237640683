// Package logtail implements ring-buffer log capture: one buffer per
// stream (or one shared buffer when merge-stdout-and-stderr is set),
// each bounded to a configurable number of lines, with long lines
// truncated and CR/LF stripped line-by-line.
package logtail
