// Package legacy imports data from the previous MongoDB deployment.
package legacy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/healthmate/core/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ImportFromMongo streams the legacy collections into the relational schema.
// ObjectIDs become string primary keys verbatim, so cross-references survive
// without a translation table. Rows that already exist are skipped, which
// makes the import idempotent.
func ImportFromMongo(ctx context.Context, db *gorm.DB, mongoURL, dbName string, log *zap.Logger) error {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURL))
	if err != nil {
		return fmt.Errorf("mongo connect: %w", err)
	}
	defer client.Disconnect(context.Background())

	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("mongo ping: %w", err)
	}

	src := client.Database(dbName)
	imp := &importer{db: db, log: log}

	steps := []struct {
		collection string
		fn         func(context.Context, *mongo.Collection) (int, error)
	}{
		{"users", imp.users},
		{"reports", imp.reports},
		{"aiinsights", imp.reportInsights},
		{"vitals", imp.vitals},
		{"vitalsinsights", imp.vitalsInsights},
	}
	for _, step := range steps {
		n, err := step.fn(ctx, src.Collection(step.collection))
		if err != nil {
			return fmt.Errorf("import %s: %w", step.collection, err)
		}
		log.Info("collection imported",
			zap.String("collection", step.collection), zap.Int("rows", n))
	}
	return nil
}

type importer struct {
	db  *gorm.DB
	log *zap.Logger
}

func (im *importer) each(ctx context.Context, coll *mongo.Collection, fn func(bson.M) error) (int, error) {
	cursor, err := coll.Find(ctx, bson.M{})
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	count := 0
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return count, err
		}
		if err := fn(doc); err != nil {
			return count, err
		}
		count++
	}
	return count, cursor.Err()
}

// insert skips rows whose primary key already exists.
func (im *importer) insert(value interface{}) error {
	return im.db.Clauses(clause.OnConflict{DoNothing: true}).Create(value).Error
}

func (im *importer) users(ctx context.Context, coll *mongo.Collection) (int, error) {
	return im.each(ctx, coll, func(doc bson.M) error {
		user := models.UserModel{
			Name:       str(doc, "name"),
			Email:      str(doc, "email"),
			CNIC:       str(doc, "cnic"),
			Password:   str(doc, "password"),
			Avatar:     str(doc, "avatar"),
			OTP:        str(doc, "otp"),
			IsVerified: boolean(doc, "isVerified"),
			IsAdmin:    boolean(doc, "isAdmin"),
		}
		user.ID = oidHex(doc, "_id")
		user.CreatedAt = when(doc, "createdAt")
		user.UpdatedAt = when(doc, "updatedAt")
		return im.insert(&user)
	})
}

func (im *importer) reports(ctx context.Context, coll *mongo.Collection) (int, error) {
	return im.each(ctx, coll, func(doc bson.M) error {
		rep := models.ReportModel{
			UserID:       oidHex(doc, "user"),
			Title:        str(doc, "title"),
			FileURL:      str(doc, "fileUrl"),
			FilePublicID: str(doc, "filePublicId"),
			FileType:     str(doc, "fileType"),
			DateTaken:    when(doc, "dateTaken"),
			Tags:         models.StringArray(strs(doc, "tags")),
			Notes:        str(doc, "notes"),
		}
		if ref := oidHex(doc, "aiInsight"); ref != "" {
			rep.AIInsightID = &ref
		}
		rep.ID = oidHex(doc, "_id")
		rep.CreatedAt = when(doc, "createdAt")
		rep.UpdatedAt = when(doc, "updatedAt")
		return im.insert(&rep)
	})
}

func (im *importer) reportInsights(ctx context.Context, coll *mongo.Collection) (int, error) {
	return im.each(ctx, coll, func(doc bson.M) error {
		insight := models.ReportInsightModel{
			ReportID:          oidHex(doc, "report"),
			LanguageSummaries: summaries(doc),
			DoctorQuestions:   models.StringArray(strs(doc, "doctorQuestions")),
			DietTips:          models.StringArray(strs(doc, "dietTips")),
			Warnings:          models.StringArray(strs(doc, "warnings")),
			RawModelResponse:  raw(doc, "rawModelResponse"),
		}
		if list, ok := doc["highlights"].(bson.A); ok {
			for _, item := range list {
				if m, ok := item.(bson.M); ok {
					insight.Highlights = append(insight.Highlights, models.InsightHighlight{
						Key:   str(m, "key"),
						Value: str(m, "value"),
						Flag:  str(m, "flag"),
					})
				}
			}
		}
		insight.ID = oidHex(doc, "_id")
		insight.CreatedAt = when(doc, "createdAt")
		insight.UpdatedAt = when(doc, "updatedAt")
		return im.insert(&insight)
	})
}

func (im *importer) vitals(ctx context.Context, coll *mongo.Collection) (int, error) {
	return im.each(ctx, coll, func(doc bson.M) error {
		vital := models.VitalModel{
			UserID:    oidHex(doc, "user"),
			Type:      str(doc, "type"),
			Systolic:  num(doc, "systolic"),
			Diastolic: num(doc, "diastolic"),
			Sugar:     num(doc, "sugar"),
			SugarType: str(doc, "sugarType"),
			Height:    num(doc, "height"),
			Weight:    num(doc, "weight"),
			SpO2:      num(doc, "spo2"),
			HeartRate: num(doc, "heartRate"),
			TimeOfDay: str(doc, "timeOfDay"),
			Frequency: str(doc, "frequency"),
			Notes:     str(doc, "notes"),
			Date:      when(doc, "date"),
		}
		if values, ok := doc["values"].(bson.M); ok {
			vital.Values = models.JSONMap(values)
		}
		if ref := oidHex(doc, "insight"); ref != "" {
			vital.InsightID = &ref
		}
		vital.ID = oidHex(doc, "_id")
		vital.CreatedAt = when(doc, "createdAt")
		vital.UpdatedAt = when(doc, "updatedAt")
		return im.insert(&vital)
	})
}

func (im *importer) vitalsInsights(ctx context.Context, coll *mongo.Collection) (int, error) {
	return im.each(ctx, coll, func(doc bson.M) error {
		insight := models.VitalsInsightModel{
			VitalID:           oidHex(doc, "vital"),
			LanguageSummaries: summaries(doc),
			Assessment:        str(doc, "assessment"),
			Advice:            models.StringArray(strs(doc, "advice")),
			FollowupQuestions: models.StringArray(strs(doc, "followupQuestions")),
			RawModelResponse:  raw(doc, "rawModelResponse"),
		}
		if list, ok := doc["alerts"].(bson.A); ok {
			for _, item := range list {
				if m, ok := item.(bson.M); ok {
					insight.Alerts = append(insight.Alerts, models.VitalsAlert{
						Key:    str(m, "key"),
						Status: str(m, "status"),
						Reason: str(m, "reason"),
					})
				}
			}
		}
		insight.ID = oidHex(doc, "_id")
		insight.CreatedAt = when(doc, "createdAt")
		insight.UpdatedAt = when(doc, "updatedAt")
		return im.insert(&insight)
	})
}

func str(doc bson.M, key string) string {
	if v, ok := doc[key].(string); ok {
		return v
	}
	return ""
}

func boolean(doc bson.M, key string) bool {
	v, _ := doc[key].(bool)
	return v
}

func num(doc bson.M, key string) *float64 {
	switch v := doc[key].(type) {
	case float64:
		return &v
	case int32:
		f := float64(v)
		return &f
	case int64:
		f := float64(v)
		return &f
	}
	return nil
}

func strs(doc bson.M, key string) []string {
	list, ok := doc[key].(bson.A)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func when(doc bson.M, key string) time.Time {
	switch v := doc[key].(type) {
	case primitive.DateTime:
		return v.Time()
	case time.Time:
		return v
	}
	return time.Now()
}

func oidHex(doc bson.M, key string) string {
	switch v := doc[key].(type) {
	case primitive.ObjectID:
		return v.Hex()
	case string:
		return v
	}
	return ""
}

func summaries(doc bson.M) models.LanguageSummaries {
	out := models.LanguageSummaries{}
	if m, ok := doc["languageSummaries"].(bson.M); ok {
		out.En = str(m, "en")
		out.Roman = str(m, "roman")
	}
	return out
}

func raw(doc bson.M, key string) models.RawJSON {
	v, ok := doc[key]
	if !ok || v == nil {
		return nil
	}
	if s, ok := v.(string); ok {
		return models.RawJSON(s)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return models.RawJSON(data)
}
