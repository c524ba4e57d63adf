package sdk

import "github.com/tagotip/tagotip/internal/codec"

// Reading is one variable a device wants to push: a name plus the typed
// value codec.Value already models as a tagged union.
type Reading struct {
	Name  string
	Value codec.Value

	Unit     string
	HasUnit  bool
	Group    string
	HasGroup bool
}

// AckResult is the SDK's decoded view of a gateway's reply, whichever
// codec.AckFrame fields were present.
type AckResult struct {
	Status    codec.AckStatus
	HasDetail bool
	Detail    codec.AckDetail
	HasSeq    bool
	Seq       uint32
}

// Ok reports whether the gateway accepted the request.
func (r *AckResult) Ok() bool {
	return r.Status == codec.StatusOk
}
