package events

import "github.com/google/uuid"

// EphemerisAdded is published after a new ephemeris is registered.
type EphemerisAdded struct {
	ID   uuid.UUID
	Name string
}

// EphemerisChanged is published once per committed parameter update, after
// the phase columns have been recomputed.
type EphemerisChanged struct {
	ID   uuid.UUID
	Name string
}

// EphemerisRenamed is published after the registry, phase columns and
// viewers all carry the new name.
type EphemerisRenamed struct {
	ID  uuid.UUID
	Old string
	New string
}

// EphemerisRemoved is published after an ephemeris, its phase columns and
// its viewers are gone.
type EphemerisRemoved struct {
	ID   uuid.UUID
	Name string
}

// DatasetAdded is published by the host data collection when a dataset is loaded.
type DatasetAdded struct {
	ID    uuid.UUID
	Label string
}

// DatasetRemoved is published when a dataset leaves the collection.
type DatasetRemoved struct {
	ID    uuid.UUID
	Label string
}

// ViewerAdded is published when a viewer is registered.
type ViewerAdded struct {
	ID        uuid.UUID
	Reference string
}

// ViewerRemoved is published when a viewer is destroyed.
type ViewerRemoved struct {
	ID        uuid.UUID
	Reference string
}

// ViewerRenamed is published when a viewer reference follows an ephemeris rename.
type ViewerRenamed struct {
	ID  uuid.UUID
	Old string
	New string
}
