package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"studentfiles/models"
	"studentfiles/utils"
)

const (
	teachersCollection = "teachers"
	studentsCollection = "students"
	filesCollection    = "files"
	captchaCollection  = "captcha_questions"
	countersCollection = "counters"
)

// MongoStorage keeps the integer identifiers of the SQL schema by drawing
// them from a counters collection.
type MongoStorage struct {
	client   *mongo.Client
	teachers *mongo.Collection
	students *mongo.Collection
	files    *mongo.Collection
	captchas *mongo.Collection
	counters *mongo.Collection
}

func NewMongoStorage(ctx context.Context, uri, database string) (*MongoStorage, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	db := client.Database(database)
	return &MongoStorage{
		client:   client,
		teachers: db.Collection(teachersCollection),
		students: db.Collection(studentsCollection),
		files:    db.Collection(filesCollection),
		captchas: db.Collection(captchaCollection),
		counters: db.Collection(countersCollection),
	}, nil
}

func (s *MongoStorage) Migrate(ctx context.Context) error {
	indexes := map[*mongo.Collection][]mongo.IndexModel{
		s.teachers: {
			{Keys: bson.D{{Key: "link_code", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "google_id", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
			{Keys: bson.D{{Key: "email", Value: 1}}},
		},
		s.students: {
			{Keys: bson.D{{Key: "teacher_id", Value: 1}, {Key: "civil_id", Value: 1}}},
		},
		s.files: {
			{Keys: bson.D{{Key: "teacher_id", Value: 1}, {Key: "student_civil_id", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "deleted_at", Value: 1}}},
		},
	}
	for coll, idx := range indexes {
		if _, err := coll.Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("create %s indexes: %w", coll.Name(), err)
		}
	}
	return nil
}

// Drop removes the whole database. Only tests call it.
func (s *MongoStorage) Drop(ctx context.Context) error {
	return s.teachers.Database().Drop(ctx)
}

func (s *MongoStorage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoStorage) nextID(ctx context.Context, name string) (uint, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next %s id: %w", name, err)
	}
	return uint(counter.Seq), nil
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, what string, opts ...*options.FindOneOptions) (*T, error) {
	var out T
	err := coll.FindOne(ctx, filter, opts...).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	return &out, nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, what string, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	defer cursor.Close(ctx)

	out := []T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	return out, nil
}

func updateOne(ctx context.Context, coll *mongo.Collection, filter, set bson.M, what string) error {
	res, err := coll.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

func (s *MongoStorage) GetTeacher(ctx context.Context, id uint) (*models.Teacher, error) {
	return findOne[models.Teacher](ctx, s.teachers, bson.M{"_id": id}, "get teacher")
}

func (s *MongoStorage) GetTeacherByGoogleID(ctx context.Context, googleID string) (*models.Teacher, error) {
	return findOne[models.Teacher](ctx, s.teachers, bson.M{"google_id": googleID}, "get teacher by google id")
}

func (s *MongoStorage) GetTeacherByLinkCode(ctx context.Context, linkCode string) (*models.Teacher, error) {
	return findOne[models.Teacher](ctx, s.teachers,
		bson.M{"link_code": linkCode, "status": models.StatusActive}, "get teacher by link code")
}

func (s *MongoStorage) GetTeacherByEmail(ctx context.Context, email string) (*models.Teacher, error) {
	teachers, err := findAll[models.Teacher](ctx, s.teachers,
		bson.M{"email": email, "status": models.StatusActive}, "get teacher by email",
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}))
	if err != nil {
		return nil, err
	}
	if len(teachers) == 0 {
		return nil, fmt.Errorf("get teacher by email: %w", ErrNotFound)
	}
	for i := range teachers {
		if teachers[i].HasPassword() {
			return &teachers[i], nil
		}
	}
	return &teachers[0], nil
}

func (s *MongoStorage) CreateTeacher(ctx context.Context, teacher *models.Teacher) error {
	id, err := s.nextID(ctx, teachersCollection)
	if err != nil {
		return err
	}
	teacher.ID = id
	if teacher.Status == "" {
		teacher.Status = models.StatusActive
	}
	if teacher.CreatedAt.IsZero() {
		teacher.CreatedAt = time.Now()
	}
	if _, err := s.teachers.InsertOne(ctx, teacher); err != nil {
		return fmt.Errorf("create teacher: %w", err)
	}
	return nil
}

func (s *MongoStorage) UpdateTeacher(ctx context.Context, teacher *models.Teacher) error {
	res, err := s.teachers.ReplaceOne(ctx, bson.M{"_id": teacher.ID}, teacher)
	if err != nil {
		return fmt.Errorf("update teacher: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("update teacher: %w", ErrNotFound)
	}
	return nil
}

func (s *MongoStorage) UpdateTeacherTokens(ctx context.Context, id uint, accessToken, refreshToken string, expiry *time.Time) error {
	set := bson.M{"access_token": accessToken, "token_expiry": expiry}
	if refreshToken != "" {
		set["refresh_token"] = refreshToken
	}
	return updateOne(ctx, s.teachers, bson.M{"_id": id}, set, "update teacher tokens")
}

func (s *MongoStorage) SetTeacherPassword(ctx context.Context, id uint, passwordHash string) error {
	return updateOne(ctx, s.teachers, bson.M{"_id": id}, bson.M{"password_hash": passwordHash}, "set teacher password")
}

func (s *MongoStorage) SetTeacherDriveFolder(ctx context.Context, id uint, folderID string) error {
	return updateOne(ctx, s.teachers, bson.M{"_id": id}, bson.M{"drive_folder_id": folderID}, "set teacher drive folder")
}

func (s *MongoStorage) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	return updateOne(ctx, s.teachers, bson.M{"_id": id}, bson.M{"last_login": at}, "touch last login")
}

func activeStudentFilter(teacherID uint) bson.M {
	return bson.M{"teacher_id": teacherID, "status": models.StatusActive}
}

func (s *MongoStorage) GetStudent(ctx context.Context, teacherID, id uint) (*models.Student, error) {
	filter := activeStudentFilter(teacherID)
	filter["_id"] = id
	return findOne[models.Student](ctx, s.students, filter, "get student")
}

func (s *MongoStorage) GetStudentByCivilID(ctx context.Context, teacherID uint, civilID string) (*models.Student, error) {
	filter := activeStudentFilter(teacherID)
	filter["civil_id"] = civilID
	return findOne[models.Student](ctx, s.students, filter, "get student by civil id")
}

func (s *MongoStorage) GetStudentsByTeacher(ctx context.Context, teacherID uint) ([]models.Student, error) {
	return findAll[models.Student](ctx, s.students, activeStudentFilter(teacherID), "list students",
		options.Find().SetSort(bson.D{{Key: "student_name", Value: 1}, {Key: "_id", Value: 1}}))
}

func (s *MongoStorage) GetCivilIDsByTeacher(ctx context.Context, teacherID uint) ([]string, error) {
	raw, err := s.students.Distinct(ctx, "civil_id", activeStudentFilter(teacherID))
	if err != nil {
		return nil, fmt.Errorf("list civil ids: %w", err)
	}
	ids := toStrings(raw)
	sort.Strings(ids)
	return ids, nil
}

func (s *MongoStorage) CreateStudent(ctx context.Context, student *models.Student) error {
	id, err := s.nextID(ctx, studentsCollection)
	if err != nil {
		return err
	}
	student.ID = id
	if student.Status == "" {
		student.Status = models.StatusActive
	}
	if student.CreatedDate.IsZero() {
		student.CreatedDate = time.Now()
	}
	if _, err := s.students.InsertOne(ctx, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

func (s *MongoStorage) CreateStudentsBatch(ctx context.Context, students []models.Student) error {
	if len(students) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(students))
	now := time.Now()
	for i := range students {
		id, err := s.nextID(ctx, studentsCollection)
		if err != nil {
			return err
		}
		students[i].ID = id
		if students[i].Status == "" {
			students[i].Status = models.StatusActive
		}
		if students[i].CreatedDate.IsZero() {
			students[i].CreatedDate = now
		}
		docs = append(docs, students[i])
	}
	if _, err := s.students.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("create students batch: %w", err)
	}
	return nil
}

func (s *MongoStorage) MarkFolderCreated(ctx context.Context, studentID uint, driveFolderID *string) error {
	return updateOne(ctx, s.students, bson.M{"_id": studentID},
		bson.M{"folder_created": true, "drive_folder_id": driveFolderID}, "mark folder created")
}

func (s *MongoStorage) DeleteStudent(ctx context.Context, teacherID, id uint) error {
	filter := activeStudentFilter(teacherID)
	filter["_id"] = id
	return updateOne(ctx, s.students, filter, bson.M{"status": models.StatusDeleted}, "delete student")
}

func activeFileFilter(teacherID uint) bson.M {
	return bson.M{"teacher_id": teacherID, "status": models.StatusActive}
}

func (s *MongoStorage) GetFile(ctx context.Context, teacherID, id uint) (*models.File, error) {
	filter := activeFileFilter(teacherID)
	filter["_id"] = id
	return findOne[models.File](ctx, s.files, filter, "get file")
}

func (s *MongoStorage) GetFilesByStudent(ctx context.Context, teacherID uint, civilID string) ([]models.File, error) {
	filter := activeFileFilter(teacherID)
	filter["student_civil_id"] = civilID
	return findAll[models.File](ctx, s.files, filter, "list student files",
		options.Find().SetSort(bson.D{{Key: "upload_date", Value: -1}, {Key: "_id", Value: -1}}))
}

func (s *MongoStorage) CreateFile(ctx context.Context, file *models.File) error {
	id, err := s.nextID(ctx, filesCollection)
	if err != nil {
		return err
	}
	file.ID = id
	if file.Status == "" {
		file.Status = models.StatusActive
	}
	if file.UploadDate.IsZero() {
		file.UploadDate = time.Now()
	}
	if _, err := s.files.InsertOne(ctx, file); err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	return nil
}

func (s *MongoStorage) DeleteFile(ctx context.Context, teacherID, id uint, at time.Time) error {
	filter := activeFileFilter(teacherID)
	filter["_id"] = id
	return updateOne(ctx, s.files, filter, bson.M{"status": models.StatusDeleted, "deleted_at": at}, "delete file")
}

func (s *MongoStorage) ListDeletedFilesBefore(ctx context.Context, cutoff time.Time) ([]models.File, error) {
	return findAll[models.File](ctx, s.files,
		bson.M{"status": models.StatusDeleted, "deleted_at": bson.M{"$ne": nil, "$lte": cutoff}},
		"list deleted files", options.Find().SetSort(bson.M{"_id": 1}))
}

func (s *MongoStorage) MarkFilePurged(ctx context.Context, id uint) error {
	return updateOne(ctx, s.files, bson.M{"_id": id, "status": models.StatusDeleted},
		bson.M{"status": models.StatusPurged}, "mark file purged")
}

func (s *MongoStorage) GetRandomCaptcha(ctx context.Context) (*models.CaptchaQuestion, error) {
	cursor, err := s.captchas.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"status": models.StatusActive}}},
		{{Key: "$sample", Value: bson.M{"size": 1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("get random captcha: %w", err)
	}
	defer cursor.Close(ctx)

	var questions []models.CaptchaQuestion
	if err := cursor.All(ctx, &questions); err != nil {
		return nil, fmt.Errorf("get random captcha: %w", err)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("get random captcha: %w", ErrNotFound)
	}
	return &questions[0], nil
}

func (s *MongoStorage) GetCaptcha(ctx context.Context, id uint) (*models.CaptchaQuestion, error) {
	return findOne[models.CaptchaQuestion](ctx, s.captchas, bson.M{"_id": id}, "get captcha")
}

func (s *MongoStorage) CreateCaptcha(ctx context.Context, question *models.CaptchaQuestion) error {
	id, err := s.nextID(ctx, captchaCollection)
	if err != nil {
		return err
	}
	question.ID = id
	if question.Status == "" {
		question.Status = models.StatusActive
	}
	if _, err := s.captchas.InsertOne(ctx, question); err != nil {
		return fmt.Errorf("create captcha: %w", err)
	}
	return nil
}

func (s *MongoStorage) CountCaptchas(ctx context.Context) (int64, error) {
	n, err := s.captchas.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count captchas: %w", err)
	}
	return n, nil
}

func (s *MongoStorage) GetTeacherStats(ctx context.Context, teacherID uint) (*models.TeacherStats, error) {
	stats := &models.TeacherStats{}
	var err error

	if stats.TotalStudents, err = s.students.CountDocuments(ctx, activeStudentFilter(teacherID)); err != nil {
		return nil, fmt.Errorf("count students: %w", err)
	}
	if stats.TotalFiles, err = s.files.CountDocuments(ctx, activeFileFilter(teacherID)); err != nil {
		return nil, fmt.Errorf("count files: %w", err)
	}
	folders := activeStudentFilter(teacherID)
	folders["folder_created"] = true
	if stats.FoldersCreated, err = s.students.CountDocuments(ctx, folders); err != nil {
		return nil, fmt.Errorf("count folders: %w", err)
	}
	raw, err := s.students.Distinct(ctx, "subject", activeStudentFilter(teacherID))
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	stats.Subjects = toStrings(raw)
	sort.Strings(stats.Subjects)
	stats.ActiveParents = stats.TotalStudents
	return stats, nil
}

func (s *MongoStorage) GetStudentFileCounts(ctx context.Context, teacherID uint) ([]models.StudentFileCount, error) {
	students, err := s.GetStudentsByTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}

	cursor, err := s.files.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: activeFileFilter(teacherID)}},
		{{Key: "$group", Value: bson.M{"_id": "$student_civil_id", "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("count student files: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		CivilID string `bson:"_id"`
		Count   int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("count student files: %w", err)
	}
	byCivil := make(map[string]int64, len(rows))
	for _, r := range rows {
		byCivil[r.CivilID] = r.Count
	}

	counts := make([]models.StudentFileCount, 0, len(students))
	for _, st := range students {
		counts = append(counts, models.StudentFileCount{StudentID: st.ID, CivilID: st.CivilID, FileCount: byCivil[st.CivilID]})
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].StudentID < counts[j].StudentID })
	return counts, nil
}

func toStrings(raw []interface{}) []string {
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		} else {
			utils.LogWarning(fmt.Sprintf("[MongoStorage] Ignoring non-string distinct value %v", v))
		}
	}
	return out
}
