package model

import "github.com/m-mizutani/goerr/v2"

var (
	// TagPermissionDenied marks location permission refusal
	TagPermissionDenied = goerr.NewTag("permission_denied")
	// TagNetwork marks failures of document store, blob store and places calls
	TagNetwork = goerr.NewTag("network")
	// TagNotFound marks lookups of records that do not exist
	TagNotFound = goerr.NewTag("not_found")
	// TagMalformed marks stored or input data that does not match the expected shape
	TagMalformed = goerr.NewTag("malformed")
	// TagEncode marks image decode/encode failures
	TagEncode = goerr.NewTag("encode")
)

var (
	ErrNoLocation    = goerr.New("no location available")
	ErrAlreadySaving = goerr.New("save already in progress")
)
