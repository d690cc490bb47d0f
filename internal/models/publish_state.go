package models

// StateKind discriminates the publish states a row can be in.
type StateKind int

const (
	// StateUnpublished means the row has never been sent.
	StateUnpublished StateKind = iota
	// StatePartial means a multi-status publish left at least one piece
	// unsent; the row is selectable again by a retry pass.
	StatePartial
	// StatePublished means the row carries the remote identifier it was
	// published under.
	StatePublished
)

// Stored column sentinels. Anything else is a remote identifier.
const (
	columnUnpublished = "0"
	columnPartial     = "2"
)

// PublishState is the tagged publish state of a Post or Media row. The store
// persists it as a single text column: "0" unpublished, "2" partially
// published, otherwise the remote identifier.
type PublishState struct {
	Kind     StateKind
	RemoteID string
}

// Unpublished returns the zero publish state.
func Unpublished() PublishState {
	return PublishState{Kind: StateUnpublished}
}

// Partial returns the partially-published marker state.
func Partial() PublishState {
	return PublishState{Kind: StatePartial}
}

// Published returns the state for a row published under id. The "0" and "2"
// sentinels are not valid remote identifiers and map back to their states.
func Published(id string) PublishState {
	return ParsePublishState(id)
}

// ParsePublishState decodes the stored column value.
func ParsePublishState(column string) PublishState {
	switch column {
	case columnUnpublished, "":
		return PublishState{Kind: StateUnpublished}
	case columnPartial:
		return PublishState{Kind: StatePartial}
	default:
		return PublishState{Kind: StatePublished, RemoteID: column}
	}
}

// Column encodes the state for storage.
func (s PublishState) Column() string {
	switch s.Kind {
	case StatePartial:
		return columnPartial
	case StatePublished:
		return s.RemoteID
	default:
		return columnUnpublished
	}
}

// IsUnpublished reports whether the row has never been sent.
func (s PublishState) IsUnpublished() bool {
	return s.Kind == StateUnpublished
}

// Anchor is the value a child status replies to: the remote id when fully
// published, otherwise the stored marker the parent produced.
func (s PublishState) Anchor() string {
	return s.Column()
}
