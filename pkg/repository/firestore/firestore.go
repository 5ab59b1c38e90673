package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/shift-lab/argus/pkg/domain/interfaces"
)

type Firestore struct {
	client  *firestore.Client
	event   *eventRepository
	status  *statusRepository
	pattern *patternRepository
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

// WithCollectionPrefix namespaces all collections, mainly for tests
// sharing a project.
func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.event.collectionPrefix = prefix
		f.status.collectionPrefix = prefix
		f.pattern.collectionPrefix = prefix
	}
}

func New(ctx context.Context, projectID string, databaseID string, opts ...Option) (*Firestore, error) {
	var client *firestore.Client
	var err error
	if databaseID != "" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client", goerr.V("projectID", projectID))
	}

	f := &Firestore{
		client:  client,
		event:   newEventRepository(client),
		status:  newStatusRepository(client),
		pattern: newPatternRepository(client),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *Firestore) Event() interfaces.EventRepository {
	return f.event
}

func (f *Firestore) Status() interfaces.StatusRepository {
	return f.status
}

func (f *Firestore) Pattern() interfaces.PatternRepository {
	return f.pattern
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}
