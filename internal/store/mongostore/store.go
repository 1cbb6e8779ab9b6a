// Package mongostore implements the stores on MongoDB. Documents use string
// UUID ids so they line up with the relational store.
package mongostore

import (
	"context"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sudo-init-do/servicehub/internal/alerts"
	"github.com/sudo-init-do/servicehub/internal/db"
	"github.com/sudo-init-do/servicehub/internal/jobs"
	"github.com/sudo-init-do/servicehub/internal/lifecycle"
	"github.com/sudo-init-do/servicehub/internal/user"
	"github.com/sudo-init-do/servicehub/internal/workers"
)

type Store struct {
	users    *mongo.Collection
	profiles *mongo.Collection
	requests *mongo.Collection
	reviews  *mongo.Collection
	jobs     *mongo.Collection
	notes    *mongo.Collection
}

func New(database *mongo.Database) *Store {
	return &Store{
		users:    database.Collection(db.CollUsers),
		profiles: database.Collection(db.CollProfiles),
		requests: database.Collection(db.CollRequests),
		reviews:  database.Collection(db.CollReviews),
		jobs:     database.Collection(db.CollJobs),
		notes:    database.Collection(db.CollNotes),
	}
}

var (
	_ lifecycle.Store = (*Store)(nil)
	_ workers.Store   = (*Store)(nil)
	_ jobs.Store      = (*Store)(nil)
	_ user.Store      = (*Store)(nil)
	_ alerts.Store    = (*Store)(nil)
)

func mapNoDocuments(err error, kind, id string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return errors.Wrapf(lifecycle.ErrNotFound, "%s %s", kind, id)
	}
	return errors.Wrapf(err, "load %s %s", kind, id)
}

// Requests

func (s *Store) CreateRequest(ctx context.Context, req *lifecycle.ServiceRequest) error {
	_, err := s.requests.InsertOne(ctx, req)
	return errors.Wrap(err, "insert service request")
}

func (s *Store) GetRequest(ctx context.Context, id string) (*lifecycle.ServiceRequest, error) {
	var req lifecycle.ServiceRequest
	if err := s.requests.FindOne(ctx, bson.M{"_id": id}).Decode(&req); err != nil {
		return nil, mapNoDocuments(err, "request", id)
	}
	return &req, nil
}

// UpdateRequestStatus matches on the expected status so only one of two
// racing writers can update the document.
func (s *Store) UpdateRequestStatus(ctx context.Context, id string, expected, next lifecycle.Status, at time.Time) (bool, error) {
	res, err := s.requests.UpdateOne(ctx,
		bson.M{"_id": id, "status": expected},
		bson.M{"$set": bson.M{"status": next, "updated_at": at}},
	)
	if err != nil {
		return false, errors.Wrap(err, "update request status")
	}
	return res.MatchedCount == 1, nil
}

func requestFilter(f lifecycle.RequestFilter) bson.M {
	filter := bson.M{}
	if f.CustomerID != "" {
		filter["customer_id"] = f.CustomerID
	}
	if f.WorkerID != "" {
		filter["worker_id"] = f.WorkerID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	return filter
}

func (s *Store) ListRequests(ctx context.Context, f lifecycle.RequestFilter) ([]lifecycle.ServiceRequest, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	if f.Offset > 0 {
		opts.SetSkip(int64(f.Offset))
	}
	cursor, err := s.requests.Find(ctx, requestFilter(f), opts)
	if err != nil {
		return nil, errors.Wrap(err, "list requests")
	}
	out := make([]lifecycle.ServiceRequest, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode requests")
	}
	return out, nil
}

func (s *Store) MarkRequestPaid(ctx context.Context, id, paymentRef string, at time.Time) (bool, error) {
	res, err := s.requests.UpdateOne(ctx,
		bson.M{"_id": id, "status": lifecycle.StatusCompleted, "is_paid": false},
		bson.M{"$set": bson.M{"is_paid": true, "payment_ref": paymentRef, "updated_at": at}},
	)
	if err != nil {
		return false, errors.Wrap(err, "mark request paid")
	}
	return res.MatchedCount == 1, nil
}

// Reviews

// CreateReview relies on the unique request_id index.
func (s *Store) CreateReview(ctx context.Context, review *lifecycle.Review) error {
	_, err := s.reviews.InsertOne(ctx, review)
	if mongo.IsDuplicateKeyError(err) {
		return lifecycle.ErrDuplicateReview
	}
	return errors.Wrap(err, "insert review")
}

func (s *Store) DeleteReview(ctx context.Context, id string) error {
	res, err := s.reviews.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrap(err, "delete review")
	}
	if res.DeletedCount == 0 {
		return errors.Wrapf(lifecycle.ErrNotFound, "review %s", id)
	}
	return nil
}

func (s *Store) GetReviewByRequest(ctx context.Context, requestID string) (*lifecycle.Review, error) {
	var r lifecycle.Review
	if err := s.reviews.FindOne(ctx, bson.M{"request_id": requestID}).Decode(&r); err != nil {
		return nil, mapNoDocuments(err, "review for request", requestID)
	}
	return &r, nil
}

func (s *Store) ListReviewsForProfile(ctx context.Context, profileID string) ([]lifecycle.Review, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	cursor, err := s.reviews.Find(ctx, bson.M{"worker_profile_id": profileID}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "list reviews")
	}
	out := make([]lifecycle.Review, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode reviews")
	}
	return out, nil
}

func (s *Store) UpdateProfileRating(ctx context.Context, profileID string, summary lifecycle.RatingSummary) error {
	res, err := s.profiles.UpdateOne(ctx,
		bson.M{"_id": profileID},
		bson.M{"$set": bson.M{"rating": summary.Average, "total_reviews": summary.Count}},
	)
	if err != nil {
		return errors.Wrap(err, "update profile rating")
	}
	if res.MatchedCount == 0 {
		return errors.Wrapf(lifecycle.ErrNotFound, "worker profile %s", profileID)
	}
	return nil
}

func (s *Store) WorkerProfileID(ctx context.Context, workerUserID string) (string, error) {
	var doc struct {
		ID string `bson:"_id"`
	}
	opts := options.FindOne().SetProjection(bson.M{"_id": 1})
	if err := s.profiles.FindOne(ctx, bson.M{"user_id": workerUserID}, opts).Decode(&doc); err != nil {
		return "", mapNoDocuments(err, "worker profile for user", workerUserID)
	}
	return doc.ID, nil
}

// Worker profiles

// UpsertProfile sets editable fields and only initialises the derived ones
// on insert.
func (s *Store) UpsertProfile(ctx context.Context, p *workers.Profile) error {
	now := time.Now().UTC()
	skills, languages := p.Skills, p.Languages
	if skills == nil {
		skills = []string{}
	}
	if languages == nil {
		languages = []string{}
	}
	update := bson.M{
		"$set": bson.M{
			"display_name": p.DisplayName,
			"category":     p.Category,
			"skills":       skills,
			"description":  p.Description,
			"charge_type":  p.ChargeType,
			"price":        p.Price,
			"service_area": p.ServiceArea,
			"availability": p.Availability,
			"languages":    languages,
			"listing_type": p.ListingType,
			"updated_at":   now,
		},
		"$setOnInsert": bson.M{
			"_id":           uuid.New().String(),
			"verified":      false,
			"pro_worker":    false,
			"rating":        0.0,
			"total_reviews": 0,
			"created_at":    now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var stored workers.Profile
	if err := s.profiles.FindOneAndUpdate(ctx, bson.M{"user_id": p.UserID}, update, opts).Decode(&stored); err != nil {
		return errors.Wrap(err, "upsert worker profile")
	}
	*p = stored
	return nil
}

func (s *Store) GetProfile(ctx context.Context, id string) (*workers.Profile, error) {
	var p workers.Profile
	if err := s.profiles.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, mapNoDocuments(err, "worker profile", id)
	}
	return &p, nil
}

func (s *Store) GetProfileByUser(ctx context.Context, userID string) (*workers.Profile, error) {
	var p workers.Profile
	if err := s.profiles.FindOne(ctx, bson.M{"user_id": userID}).Decode(&p); err != nil {
		return nil, mapNoDocuments(err, "worker profile for user", userID)
	}
	return &p, nil
}

func profileFilter(f workers.Filter) bson.M {
	filter := bson.M{}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if f.ListingType != "" {
		filter["listing_type"] = f.ListingType
	}
	if f.Availability != "" {
		filter["availability"] = f.Availability
	}
	if f.Verified != nil {
		filter["verified"] = *f.Verified
	}
	if f.MinPrice != nil || f.MaxPrice != nil {
		price := bson.M{}
		if f.MinPrice != nil {
			price["$gte"] = *f.MinPrice
		}
		if f.MaxPrice != nil {
			price["$lte"] = *f.MaxPrice
		}
		filter["price"] = price
	}
	if f.MinRating != nil {
		filter["rating"] = bson.M{"$gte": *f.MinRating}
	}
	if f.Search != "" {
		pattern := regexp.QuoteMeta(f.Search)
		re := bson.M{"$regex": pattern, "$options": "i"}
		filter["$or"] = bson.A{
			bson.M{"display_name": re},
			bson.M{"skills": re},
			bson.M{"description": re},
		}
	}
	return filter
}

func (s *Store) SearchProfiles(ctx context.Context, f workers.Filter) (workers.Page, error) {
	f = f.Normalize()
	filter := profileFilter(f)
	opts := options.Find().
		SetSort(bson.D{{Key: "verified", Value: -1}, {Key: "rating", Value: -1}, {Key: "pro_worker", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(f.Limit)).
		SetSkip(int64(f.Skip))

	cursor, err := s.profiles.Find(ctx, filter, opts)
	if err != nil {
		return workers.Page{}, errors.Wrap(err, "search profiles")
	}
	page := workers.Page{Workers: make([]workers.Profile, 0)}
	if err := cursor.All(ctx, &page.Workers); err != nil {
		return workers.Page{}, errors.Wrap(err, "decode profiles")
	}
	total, err := s.profiles.CountDocuments(ctx, filter)
	if err != nil {
		return workers.Page{}, errors.Wrap(err, "count profiles")
	}
	page.Total = int(total)
	return page, nil
}

func (s *Store) SetVerified(ctx context.Context, id string, verified bool) error {
	res, err := s.profiles.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"verified": verified, "updated_at": time.Now().UTC()}})
	if err != nil {
		return errors.Wrap(err, "set verified")
	}
	if res.MatchedCount == 0 {
		return errors.Wrapf(lifecycle.ErrNotFound, "worker profile %s", id)
	}
	return nil
}

// Users

func (s *Store) EnsureUser(ctx context.Context, u *user.User) (*user.User, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	update := bson.M{"$setOnInsert": bson.M{
		"name":       u.Name,
		"email":      u.Email,
		"role":       u.Role,
		"is_blocked": false,
		"created_at": u.CreatedAt,
	}}
	var stored user.User
	err := s.users.FindOneAndUpdate(ctx, bson.M{"_id": u.ID}, update, opts).Decode(&stored)
	if mongo.IsDuplicateKeyError(err) {
		// Lost a concurrent first-sight insert; the winner's record is there now.
		return s.GetUser(ctx, u.ID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "ensure user")
	}
	return &stored, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*user.User, error) {
	var u user.User
	if err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, mapNoDocuments(err, "user", id)
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	cursor, err := s.users.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	out := make([]user.User, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode users")
	}
	return out, nil
}

func (s *Store) SetBlocked(ctx context.Context, id string, blocked bool) error {
	return s.setUserField(ctx, id, "is_blocked", blocked)
}

func (s *Store) SetRole(ctx context.Context, id string, role lifecycle.Role) error {
	return s.setUserField(ctx, id, "role", role)
}

func (s *Store) UpdateName(ctx context.Context, id, name string) error {
	return s.setUserField(ctx, id, "name", name)
}

func (s *Store) setUserField(ctx context.Context, id, field string, value interface{}) error {
	res, err := s.users.UpdateByID(ctx, id, bson.M{"$set": bson.M{field: value}})
	if err != nil {
		return errors.Wrapf(err, "update user %s", field)
	}
	if res.MatchedCount == 0 {
		return errors.Wrapf(lifecycle.ErrNotFound, "user %s", id)
	}
	return nil
}

// Jobs

func (s *Store) CreateJob(ctx context.Context, job *jobs.Job) error {
	doc := *job
	if doc.Applicants == nil {
		doc.Applicants = []jobs.Applicant{}
	}
	_, err := s.jobs.InsertOne(ctx, doc)
	return errors.Wrap(err, "insert job")
}

func (s *Store) GetJob(ctx context.Context, id string) (*jobs.Job, error) {
	var j jobs.Job
	if err := s.jobs.FindOne(ctx, bson.M{"_id": id}).Decode(&j); err != nil {
		return nil, mapNoDocuments(err, "job", id)
	}
	return &j, nil
}

func jobFilter(f jobs.Filter) bson.M {
	filter := bson.M{}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	return filter
}

func (s *Store) ListJobs(ctx context.Context, f jobs.Filter) ([]jobs.Job, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(jobs.ListLimit)
	cursor, err := s.jobs.Find(ctx, jobFilter(f), opts)
	if err != nil {
		return nil, errors.Wrap(err, "list jobs")
	}
	out := make([]jobs.Job, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode jobs")
	}
	return out, nil
}

// AddApplicant pushes only when the job is open and the user is not already
// listed, in one conditional update.
func (s *Store) AddApplicant(ctx context.Context, jobID string, a jobs.Applicant) error {
	res, err := s.jobs.UpdateOne(ctx,
		bson.M{"_id": jobID, "status": jobs.StatusOpen, "applicants.user_id": bson.M{"$ne": a.UserID}},
		bson.M{"$push": bson.M{"applicants": a}},
	)
	if err != nil {
		return errors.Wrap(err, "add applicant")
	}
	if res.MatchedCount == 1 {
		return nil
	}

	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != jobs.StatusOpen {
		return jobs.ErrJobNotOpen
	}
	return jobs.ErrAlreadyApplied
}

// Notifications

func (s *Store) CreateNotification(ctx context.Context, n *alerts.Notification) error {
	_, err := s.notes.InsertOne(ctx, n)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return errors.Wrap(err, "insert notification")
}

func (s *Store) ListNotifications(ctx context.Context, userID string) ([]alerts.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.notes.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "list notifications")
	}
	out := make([]alerts.Notification, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode notifications")
	}
	return out, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, id, userID string, at time.Time) (bool, error) {
	res, err := s.notes.UpdateOne(ctx,
		bson.M{"_id": id, "user_id": userID, "read_at": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"read_at": at}},
	)
	if err != nil {
		return false, errors.Wrap(err, "mark notification read")
	}
	return res.ModifiedCount == 1, nil
}
