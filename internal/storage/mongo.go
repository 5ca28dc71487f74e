package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/quilltask/quill/internal/config"
	"github.com/quilltask/quill/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoConnectTimeout = 10 * time.Second

// taskDoc is the wire form of one task. Documents carry the full context
// tuple so backend queries can filter on it.
type taskDoc struct {
	ID        string    `bson:"_id"`
	Org       string    `bson:"org"`
	Repo      string    `bson:"repo"`
	Branch    string    `bson:"branch"`
	TaskID    int64     `bson:"task_id"`
	Pos       int       `bson:"pos"`
	Text      string    `bson:"text"`
	Status    string    `bson:"status"`
	CreatedAt time.Time `bson:"created_at"`
}

// Mongo persists tasks as per-task documents in a remote collection. The
// connection is established once, up front; a failed attempt degrades the
// session rather than retrying.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongo connects with a bounded timeout and verifies the server with a
// ping. Failures are reported as ErrConnection.
func NewMongo(ctx context.Context, cfg config.MongoConfig) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	// The URI may carry its own serverSelectionTimeoutMS; the default
	// applies only when it does not.
	opts := options.Client().
		SetServerSelectionTimeout(mongoConnectTimeout).
		ApplyURI(cfg.ConnectionString)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	return &Mongo{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

// Name implements Backend.
func (m *Mongo) Name() string { return "mongo" }

// Close implements Backend.
func (m *Mongo) Close() error {
	return m.client.Disconnect(context.Background())
}

func contextFilter(key models.Context) bson.D {
	return bson.D{
		{Key: "org", Value: key.Org},
		{Key: "repo", Value: key.Repo},
		{Key: "branch", Value: key.Branch},
	}
}

// Load implements Backend.
func (m *Mongo) Load(ctx context.Context, key models.Context) (models.Collection, error) {
	cursor, err := m.coll.Find(ctx, contextFilter(key),
		options.Find().SetSort(bson.D{{Key: "pos", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("%w: find: %v", ErrQuery, err)
	}

	var docs []taskDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrQuery, err)
	}

	tasks := models.Collection{}
	for _, d := range docs {
		tasks = append(tasks, models.Task{
			ID:        d.TaskID,
			Text:      d.Text,
			Status:    models.TaskStatus(d.Status),
			CreatedAt: d.CreatedAt.UTC(),
		})
	}
	if err := validate(tasks); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	return tasks, nil
}

// Save implements Backend. The overwrite is a delete-and-insert scoped by
// the context filter; that is the closest a plain collection gets to a
// single replace.
func (m *Mongo) Save(ctx context.Context, key models.Context, tasks models.Collection) error {
	if _, err := m.coll.DeleteMany(ctx, contextFilter(key)); err != nil {
		return fmt.Errorf("%w: clear context: %v", ErrQuery, err)
	}
	if len(tasks) == 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(tasks))
	for pos, t := range tasks {
		docs = append(docs, taskDoc{
			ID:        uuid.NewString(),
			Org:       key.Org,
			Repo:      key.Repo,
			Branch:    key.Branch,
			TaskID:    t.ID,
			Pos:       pos,
			Text:      t.Text,
			Status:    string(t.Status),
			CreatedAt: t.CreatedAt.UTC(),
		})
	}
	if _, err := m.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("%w: insert tasks: %v", ErrQuery, err)
	}
	return nil
}
