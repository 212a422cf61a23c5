// Package mongo implements repository.ConversationRepository and
// repository.TaskRepository on top of go.mongodb.org/mongo-driver/v2,
// following the teacher's features/session/mongo client: a small Options
// struct naming the database/collections, idempotent upsert-based creation
// using $setOnInsert so concurrent Create calls never clobber an
// existing record, and bson document structs kept separate from the
// exported domain types.
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/planexec/planexec/repository"
)

const (
	defaultConversationsCollection = "conversations"
	defaultTasksCollection         = "tasks"
	defaultMessagesCollection      = "messages"
	defaultOpTimeout               = 5 * time.Second
)

// Options configures the Mongo-backed Repository.
type Options struct {
	Client                 *mongodriver.Client
	Database               string
	ConversationsCollection string
	TasksCollection        string
	MessagesCollection     string
	Timeout                time.Duration
}

// Repository implements repository.ConversationRepository and
// repository.TaskRepository against MongoDB collections.
type Repository struct {
	conversations *mongodriver.Collection
	tasks         *mongodriver.Collection
	messages      *mongodriver.Collection
	timeout       time.Duration
}

// New constructs a Repository and ensures the collections it needs exist
// with the indexes required for lookups by conversation_id.
func New(ctx context.Context, opts Options) (*Repository, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	convColl := orDefault(opts.ConversationsCollection, defaultConversationsCollection)
	taskColl := orDefault(opts.TasksCollection, defaultTasksCollection)
	msgColl := orDefault(opts.MessagesCollection, defaultMessagesCollection)
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}

	db := opts.Client.Database(opts.Database)
	r := &Repository{
		conversations: db.Collection(convColl),
		tasks:         db.Collection(taskColl),
		messages:      db.Collection(msgColl),
		timeout:       timeout,
	}
	if err := r.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func (r *Repository) ensureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if _, err := r.tasks.Indexes().CreateOne(ctx, mongodriver.IndexModel{
		Keys: bson.D{{Key: "conversation_id", Value: 1}},
	}); err != nil {
		return err
	}
	_, err := r.messages.Indexes().CreateOne(ctx, mongodriver.IndexModel{
		Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}},
	})
	return err
}

func (r *Repository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

type conversationDoc struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	Status    string    `bson:"status"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (d conversationDoc) toDomain() repository.Conversation {
	return repository.Conversation{
		ID: d.ID, UserID: d.UserID, Status: repository.ConversationStatus(d.Status),
		CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
}

// Create is an idempotent upsert: an existing active conversation is left
// untouched ($setOnInsert only), matching the teacher's CreateSession
// idempotency contract.
func (r *Repository) Create(ctx context.Context, conv repository.Conversation) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	now := time.Now().UTC()
	filter := bson.M{"_id": conv.ID}
	update := bson.M{
		"$setOnInsert": bson.M{
			"_id": conv.ID, "user_id": conv.UserID, "status": string(repository.ConversationActive),
			"created_at": now, "updated_at": now,
		},
	}
	_, err := r.conversations.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	return err
}

func (r *Repository) Get(ctx context.Context, id string) (repository.Conversation, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	var doc conversationDoc
	err := r.conversations.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return repository.Conversation{}, repository.ErrConversationNotFound
	}
	if err != nil {
		return repository.Conversation{}, err
	}
	return doc.toDomain(), nil
}

func (r *Repository) End(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	res, err := r.conversations.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"status": string(repository.ConversationEnded), "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrConversationNotFound
	}
	return nil
}

type taskDoc struct {
	ID             string     `bson:"_id"`
	ConversationID string     `bson:"conversation_id"`
	UserInput      string     `bson:"user_input"`
	FinalStatus    string     `bson:"final_status"`
	CreatedAt      time.Time  `bson:"created_at"`
	CompletedAt    *time.Time `bson:"completed_at,omitempty"`
}

func (d taskDoc) toDomain() repository.TaskRecord {
	return repository.TaskRecord{
		ID: d.ID, ConversationID: d.ConversationID, UserInput: d.UserInput,
		FinalStatus: d.FinalStatus, CreatedAt: d.CreatedAt, CompletedAt: d.CompletedAt,
	}
}

func (r *Repository) CreateTask(ctx context.Context, task repository.TaskRecord) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	_, err := r.tasks.InsertOne(ctx, taskDoc{
		ID: task.ID, ConversationID: task.ConversationID, UserInput: task.UserInput,
		FinalStatus: task.FinalStatus, CreatedAt: task.CreatedAt, CompletedAt: task.CompletedAt,
	})
	return err
}

func (r *Repository) CompleteTask(ctx context.Context, id string, finalStatus string, completedAt time.Time) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	res, err := r.tasks.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"final_status": finalStatus, "completed_at": completedAt},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrTaskNotFound
	}
	return nil
}

func (r *Repository) GetTask(ctx context.Context, id string) (repository.TaskRecord, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	var doc taskDoc
	err := r.tasks.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return repository.TaskRecord{}, repository.ErrTaskNotFound
	}
	if err != nil {
		return repository.TaskRecord{}, err
	}
	return doc.toDomain(), nil
}

func (r *Repository) ListTasksByConversation(ctx context.Context, conversationID string) ([]repository.TaskRecord, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	cur, err := r.tasks.Find(ctx, bson.M{"conversation_id": conversationID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []repository.TaskRecord
	for cur.Next(ctx) {
		var doc taskDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toDomain())
	}
	return out, cur.Err()
}

type messageDoc struct {
	ConversationID string    `bson:"conversation_id"`
	Role           string    `bson:"role"`
	Content        string    `bson:"content"`
	CreatedAt      time.Time `bson:"created_at"`
}

func (r *Repository) AppendMessage(ctx context.Context, msg repository.Message) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	_, err := r.messages.InsertOne(ctx, messageDoc{
		ConversationID: msg.ConversationID, Role: msg.Role, Content: msg.Content, CreatedAt: msg.CreatedAt,
	})
	return err
}

func (r *Repository) ListMessages(ctx context.Context, conversationID string) ([]repository.Message, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := r.messages.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []repository.Message
	for cur.Next(ctx) {
		var doc messageDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, repository.Message{
			ConversationID: doc.ConversationID, Role: doc.Role, Content: doc.Content, CreatedAt: doc.CreatedAt,
		})
	}
	return out, cur.Err()
}

var (
	_ repository.ConversationRepository = (*Repository)(nil)
	_ repository.TaskRepository         = (*Repository)(nil)
)
