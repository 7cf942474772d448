package xmlsource

import "errors"

var (
	ErrNilLoader    = errors.New("xml loader is nil")
	ErrNoDocuments  = errors.New("no documents found")
	ErrNilFetcher   = errors.New("object fetcher is nil")
	ErrMalformedXML = errors.New("malformed xml document")
)
