// Package archive moves old chat messages out of MongoDB into local JSONL
// files.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultBatchSize = 5000

// Archiver drains messages older than a cutoff into part files, deleting the
// archived documents afterwards.
type Archiver struct {
	Messages  *mongo.Collection
	Dir       string
	BatchSize int
}

func NewArchiver(db *mongo.Database, dir string) (*Archiver, error) {
	if db == nil {
		return nil, errors.New("mongo database is required")
	}
	if dir == "" {
		dir = "archives"
	}
	return &Archiver{
		Messages:  db.Collection("messages"),
		Dir:       dir,
		BatchSize: defaultBatchSize,
	}, nil
}

// Result reports one archive run.
type Result struct {
	Backend         string    `json:"backend"`
	Dir             string    `json:"dir"`
	Cutoff          time.Time `json:"cutoff"`
	TotalCandidates int       `json:"total_candidates"`
	Archived        int       `json:"archived"`
	Deleted         int       `json:"deleted"`
	Parts           int       `json:"parts"`
	DryRun          bool      `json:"dry_run"`
}

// ArchiveMessages writes every message older than days to JSONL part files
// and deletes the archived documents. With dryRun only the candidate count is
// reported.
func (a *Archiver) ArchiveMessages(ctx context.Context, days int, dryRun bool) (Result, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	res := Result{Backend: "local", Dir: a.Dir, Cutoff: cutoff, DryRun: dryRun}

	batchSize := a.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if !dryRun {
		if err := os.MkdirAll(a.Dir, 0o755); err != nil {
			return res, fmt.Errorf("archive dir: %w", err)
		}
	}

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := a.Messages.Find(ctx, bson.M{"created_at": bson.M{"$lt": cutoff}}, opts)
	if err != nil {
		return res, err
	}
	defer cursor.Close(ctx)

	stamp := time.Now().UTC().Format("20060102T150405Z")
	var (
		lines [][]byte
		ids   []any
	)
	flush := func() error {
		if len(lines) == 0 {
			return nil
		}
		res.Parts++
		if !dryRun {
			if err := a.writePart(stamp, res.Parts, lines); err != nil {
				return err
			}
			res.Archived += len(lines)
			deleted, err := a.deleteBatch(ctx, ids)
			if err != nil {
				return err
			}
			res.Deleted += deleted
		}
		lines, ids = lines[:0], ids[:0]
		return nil
	}

	for cursor.Next(ctx) {
		res.TotalCandidates++
		line, err := bson.MarshalExtJSON(cursor.Current, false, false)
		if err != nil {
			return res, err
		}
		lines = append(lines, line)
		ids = append(ids, cursor.Current.Lookup("_id"))
		if len(lines) >= batchSize {
			if err := flush(); err != nil {
				return res, err
			}
		}
	}
	if err := cursor.Err(); err != nil {
		return res, err
	}
	if err := flush(); err != nil {
		return res, err
	}
	return res, nil
}

func (a *Archiver) writePart(stamp string, part int, lines [][]byte) error {
	name := filepath.Join(a.Dir, fmt.Sprintf("archive-%s-part%d.jsonl", stamp, part))
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	for _, line := range lines {
		if _, err := f.Write(append(line, '\n')); err != nil {
			f.Close()
			return err
		}
	}
	return f.Close()
}

func (a *Archiver) deleteBatch(ctx context.Context, ids []any) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	out, err := a.Messages.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, err
	}
	return int(out.DeletedCount), nil
}
