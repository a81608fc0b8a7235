package graph

// Node ids are derived deterministically from the taxonomy identifiers so
// repeated builds address the same nodes.

// ChapterID returns the graph node id for a chapter.
func ChapterID(chapter string) string { return "chap_" + chapter }

// HeadingID returns the graph node id for a heading.
func HeadingID(heading string) string { return "head_" + heading }

// SubheadingID returns the graph node id for a subheading.
func SubheadingID(subheading string) string { return "sub_" + subheading }

// CodeID returns the graph node id for an eight-digit HSN code.
func CodeID(hsnCode string) string { return "code_" + hsnCode }
