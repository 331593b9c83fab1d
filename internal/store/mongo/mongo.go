// Package mongo stores per-user documents in MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pocketplan/internal/core"
	"pocketplan/internal/store"
)

const (
	collTransactions = "transactions"
	collGoals        = "goals"
	collProfiles     = "profiles"
	collAccounts     = "accounts"
)

// DB wraps the MongoDB collections used by the ledger.
type DB struct {
	client   *mongo.Client
	txs      *mongo.Collection
	goals    *mongo.Collection
	profiles *mongo.Collection
	accounts *mongo.Collection
	now      func() time.Time
}

// New connects, pings and ensures indexes.
func New(ctx context.Context, uri, dbName string) (*DB, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}

	database := client.Database(dbName)
	db := &DB{
		client:   client,
		txs:      database.Collection(collTransactions),
		goals:    database.Collection(collGoals),
		profiles: database.Collection(collProfiles),
		accounts: database.Collection(collAccounts),
		now:      time.Now,
	}
	if err := db.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	slog.InfoContext(ctx, "Connected to MongoDB", "database", dbName)
	return db, nil
}

func (db *DB) ensureIndexes(ctx context.Context) error {
	_, err := db.txs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "date", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create transactions index: %w", err)
	}
	_, err = db.goals.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "name", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create goals index: %w", err)
	}
	_, err = db.accounts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "emailKey", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create accounts index: %w", err)
	}
	return nil
}

func (db *DB) Ping(ctx context.Context) error {
	return db.client.Ping(ctx, nil)
}

func (db *DB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return db.client.Disconnect(ctx)
}

type txDoc struct {
	ID          string  `bson:"_id"`
	UserID      string  `bson:"userId"`
	Category    string  `bson:"category"`
	Type        string  `bson:"type"`
	Amount      float64 `bson:"amount"`
	Date        string  `bson:"date"`
	Description string  `bson:"description,omitempty"`
	CreatedAt   string  `bson:"createdAt"`
}

func toTxDoc(userID string, tx core.Transaction) txDoc {
	return txDoc{
		ID:          tx.ID,
		UserID:      userID,
		Category:    tx.Category,
		Type:        string(tx.Type),
		Amount:      tx.Amount.Float(),
		Date:        tx.Date.String(),
		Description: tx.Description,
		CreatedAt:   tx.CreatedAt,
	}
}

func (d txDoc) transaction() core.Transaction {
	return core.Transaction{
		ID:          d.ID,
		Category:    d.Category,
		Type:        core.TxType(d.Type),
		Amount:      core.Amount(d.Amount),
		Date:        core.ParseDateInput(d.Date),
		Description: d.Description,
		CreatedAt:   d.CreatedAt,
	}
}

type goalDoc struct {
	ID        string  `bson:"_id"`
	UserID    string  `bson:"userId"`
	Name      string  `bson:"name"`
	Type      string  `bson:"type"`
	Amount    float64 `bson:"amount"`
	Target    float64 `bson:"target"`
	CreatedAt string  `bson:"createdAt"`
}

func toGoalDoc(userID string, g core.Goal) goalDoc {
	return goalDoc{
		ID:        g.ID,
		UserID:    userID,
		Name:      g.Name,
		Type:      string(g.Type),
		Amount:    g.Amount.Float(),
		Target:    g.Target.Float(),
		CreatedAt: g.CreatedAt,
	}
}

func (d goalDoc) goal() core.Goal {
	return core.Goal{
		ID:        d.ID,
		Name:      d.Name,
		Type:      core.GoalType(d.Type),
		Amount:    core.Amount(d.Amount),
		Target:    core.Amount(d.Target),
		CreatedAt: d.CreatedAt,
	}
}

type profileDoc struct {
	UserID      string  `bson:"_id"`
	BaseBalance float64 `bson:"baseBalance"`
}

type accountDoc struct {
	ID            string `bson:"_id"`
	Name          string `bson:"name"`
	Email         string `bson:"email"`
	EmailKey      string `bson:"emailKey"`
	PhotoURL      string `bson:"photoURL,omitempty"`
	PasswordHash  string `bson:"passwordHash,omitempty"`
	EmailVerified bool   `bson:"emailVerified"`
	Provider      string `bson:"provider"`
	CreatedAt     string `bson:"createdAt"`
}

func toAccountDoc(a core.Account) accountDoc {
	return accountDoc{
		ID:            a.ID,
		Name:          a.Name,
		Email:         a.Email,
		EmailKey:      core.NormalizeEmail(a.Email),
		PhotoURL:      a.PhotoURL,
		PasswordHash:  a.PasswordHash,
		EmailVerified: a.EmailVerified,
		Provider:      a.Provider,
		CreatedAt:     a.CreatedAt,
	}
}

func (d accountDoc) account() core.Account {
	return core.Account{
		ID:            d.ID,
		Name:          d.Name,
		Email:         d.Email,
		PhotoURL:      d.PhotoURL,
		PasswordHash:  d.PasswordHash,
		EmailVerified: d.EmailVerified,
		Provider:      d.Provider,
		CreatedAt:     d.CreatedAt,
	}
}

func scoped(userID, id string) bson.M {
	return bson.M{"_id": id, "userId": userID}
}

func (db *DB) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}})
	cursor, err := db.txs.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find transactions: %w", err)
	}
	defer cursor.Close(ctx)

	var out []core.Transaction
	for cursor.Next(ctx) {
		var d txDoc
		if err := cursor.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode transaction: %w", err)
		}
		out = append(out, d.transaction())
	}
	return out, cursor.Err()
}

func (db *DB) CreateTransaction(ctx context.Context, userID string, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	tx.ID = uuid.NewString()
	if tx.CreatedAt == "" {
		tx.CreatedAt = db.now().UTC().Format(time.RFC3339)
	}
	if _, err := db.txs.InsertOne(ctx, toTxDoc(userID, tx)); err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return tx, nil
}

func (db *DB) UpdateTransaction(ctx context.Context, userID, id string, patch core.TransactionPatch) (core.Transaction, error) {
	var d txDoc
	if err := db.txs.FindOne(ctx, scoped(userID, id)).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
		}
		return core.Transaction{}, fmt.Errorf("find transaction: %w", err)
	}
	updated := patch.Apply(d.transaction())
	if err := updated.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if _, err := db.txs.ReplaceOne(ctx, scoped(userID, id), toTxDoc(userID, updated)); err != nil {
		return core.Transaction{}, fmt.Errorf("replace transaction: %w", err)
	}
	return updated, nil
}

func (db *DB) DeleteTransaction(ctx context.Context, userID, id string) error {
	res, err := db.txs.DeleteOne(ctx, scoped(userID, id))
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (db *DB) ListGoals(ctx context.Context, userID string) ([]core.Goal, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := db.goals.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find goals: %w", err)
	}
	defer cursor.Close(ctx)

	var out []core.Goal
	for cursor.Next(ctx) {
		var d goalDoc
		if err := cursor.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode goal: %w", err)
		}
		out = append(out, d.goal())
	}
	return out, cursor.Err()
}

func (db *DB) CreateGoal(ctx context.Context, userID string, g core.Goal) (core.Goal, error) {
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	g.ID = uuid.NewString()
	if g.CreatedAt == "" {
		g.CreatedAt = db.now().UTC().Format(time.RFC3339)
	}
	if _, err := db.goals.InsertOne(ctx, toGoalDoc(userID, g)); err != nil {
		return core.Goal{}, fmt.Errorf("insert goal: %w", err)
	}
	return g, nil
}

func (db *DB) UpdateGoal(ctx context.Context, userID, id string, patch core.GoalPatch) (core.Goal, error) {
	var d goalDoc
	if err := db.goals.FindOne(ctx, scoped(userID, id)).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return core.Goal{}, fmt.Errorf("goal %s: %w", id, store.ErrNotFound)
		}
		return core.Goal{}, fmt.Errorf("find goal: %w", err)
	}
	updated := patch.Apply(d.goal())
	if err := updated.Validate(); err != nil {
		return core.Goal{}, err
	}
	if _, err := db.goals.ReplaceOne(ctx, scoped(userID, id), toGoalDoc(userID, updated)); err != nil {
		return core.Goal{}, fmt.Errorf("replace goal: %w", err)
	}
	return updated, nil
}

func (db *DB) DeleteGoal(ctx context.Context, userID, id string) error {
	res, err := db.goals.DeleteOne(ctx, scoped(userID, id))
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("goal %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (db *DB) GetProfile(ctx context.Context, userID string) (core.Profile, error) {
	var d profileDoc
	err := db.profiles.FindOne(ctx, bson.M{"_id": userID}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.Profile{UserID: userID}, nil
	}
	if err != nil {
		return core.Profile{UserID: userID}, fmt.Errorf("find profile: %w", err)
	}
	return core.Profile{UserID: userID, BaseBalance: d.BaseBalance}, nil
}

func (db *DB) SaveProfile(ctx context.Context, p core.Profile) error {
	_, err := db.profiles.UpdateOne(ctx,
		bson.M{"_id": p.UserID},
		bson.M{"$set": bson.M{"baseBalance": p.BaseBalance}},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

func (db *DB) CreateAccount(ctx context.Context, a core.Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if _, err := db.accounts.InsertOne(ctx, toAccountDoc(a)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("account %s: %w", a.Email, store.ErrDuplicate)
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (db *DB) findAccount(ctx context.Context, filter bson.M, label string) (core.Account, error) {
	var d accountDoc
	err := db.accounts.FindOne(ctx, filter).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.Account{}, fmt.Errorf("account %s: %w", label, store.ErrNotFound)
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("find account: %w", err)
	}
	return d.account(), nil
}

func (db *DB) GetAccount(ctx context.Context, id string) (core.Account, error) {
	return db.findAccount(ctx, bson.M{"_id": id}, id)
}

func (db *DB) GetAccountByEmail(ctx context.Context, email string) (core.Account, error) {
	key := core.NormalizeEmail(email)
	return db.findAccount(ctx, bson.M{"emailKey": key}, key)
}

func (db *DB) UpdateAccount(ctx context.Context, a core.Account) error {
	res, err := db.accounts.ReplaceOne(ctx, bson.M{"_id": a.ID}, toAccountDoc(a))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("account %s: %w", a.Email, store.ErrDuplicate)
		}
		return fmt.Errorf("replace account: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("account %s: %w", a.ID, store.ErrNotFound)
	}
	return nil
}
