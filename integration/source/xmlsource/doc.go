// Package xmlsource serves XML records to a publisher.
//
// A Loader fetches raw XML: literal strings, a file, or objects from an S3
// bucket. Each blob may hold one record or a wrapper around many; every element
// named after the object type becomes one record.Document. Loading happens on
// first use and the records are kept for the life of the source.
//
// Factory plugs a loader into a publisher. Events follow the configured mode:
// once-only sources report every record on the first pass and nothing after,
// repeating sources report them again on every pass. Every query gets a fresh
// pass over all records.
//
//	pub, err := broadcast.NewPublisher("StudentPersonal",
//	    xmlsource.Factory("StudentPersonal", xmlsource.File("students.xml"),
//	        xmlsource.WithMode(broadcast.ModeRepeat)),
//	    broadcast.WithEventFrequency(time.Minute),
//	)
package xmlsource
