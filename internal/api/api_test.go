package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/quizbot/internal/auth"
	"github.com/example/quizbot/internal/database"
	"github.com/example/quizbot/internal/database/dbtest"
	"github.com/example/quizbot/internal/excel"
	"github.com/example/quizbot/internal/quiz"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	db     *sqlx.DB
	auth   *auth.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := dbtest.New(t)
	authService := auth.NewService(database.NewUserRepository(db), database.NewBadPasswordRepository(db), "secret", time.Hour)
	engine := quiz.NewEngine(database.NewContentStore(db), database.NewAttemptRepository(db))
	handlers := Handlers{
		Auth:     NewAuthHandler(authService),
		Content:  NewContentHandler(database.NewSubjectRepository(db), database.NewTopicRepository(db), database.NewQuestionRepository(db)),
		Attempts: NewAttemptHandler(engine),
		Admin:    NewAdminHandler(database.NewBadPasswordRepository(db), excel.NewImporter(db, excel.DefaultImportConfig())),
	}
	return &testServer{router: NewRouter(authService, handlers, nil), db: db, auth: authService}
}

func (s *testServer) token(t *testing.T, username string) string {
	t.Helper()
	_, token, err := s.auth.Register(context.Background(), auth.RegisterInput{Username: username, Password: "Str0ng!Pass"})
	if err != nil {
		t.Fatalf("Register %s failed: %v", username, err)
	}
	return token
}

// adminToken registers an account, grants it admin rights the way the
// admin command does and logs in again for a token carrying the claim
func (s *testServer) adminToken(t *testing.T) string {
	t.Helper()
	s.token(t, "admin")
	if _, err := s.auth.SetAdmin(context.Background(), "admin", true); err != nil {
		t.Fatalf("SetAdmin failed: %v", err)
	}
	_, token, err := s.auth.Login(context.Background(), "admin", "Str0ng!Pass")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode %q: %v", w.Body.String(), err)
	}
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("Expected status %d, got %d: %s", want, w.Code, w.Body.String())
	}
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, kind string) {
	t.Helper()
	expectStatus(t, w, status)
	var resp ErrorResponse
	decode(t, w, &resp)
	if resp.Kind != kind {
		t.Errorf("Expected error kind %q, got %q (%s)", kind, resp.Kind, resp.Error)
	}
}

func TestQuizOverHTTP(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken(t)
	player := s.token(t, "player")

	w := s.do(t, http.MethodPost, "/api/v1/subjects", admin, SubjectRequest{Name: "Mathematics"})
	expectStatus(t, w, http.StatusCreated)
	var subject struct{ ID int64 }
	decode(t, w, &subject)

	w = s.do(t, http.MethodPost, "/api/v1/topics", admin, TopicRequest{SubjectID: subject.ID, Name: "Algebra"})
	expectStatus(t, w, http.StatusCreated)
	var topic struct{ ID int64 }
	decode(t, w, &topic)

	for i := 1; i <= 3; i++ {
		w = s.do(t, http.MethodPost, "/api/v1/questions", admin, QuestionRequest{
			TopicID:  topic.ID,
			Text:     fmt.Sprintf("%d + %d = ?", i, i),
			Position: i,
			Choices: []ChoiceRequest{
				{Text: fmt.Sprint(i * 2), IsCorrect: true},
				{Text: fmt.Sprint(i*2 + 1)},
			},
		})
		expectStatus(t, w, http.StatusCreated)
	}

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/subjects/%d/topics", subject.ID), "", nil)
	expectStatus(t, w, http.StatusOK)
	var topics []struct {
		QuestionCount int `json:"question_count"`
	}
	decode(t, w, &topics)
	if len(topics) != 1 || topics[0].QuestionCount != 3 {
		t.Errorf("Unexpected topics: %s", w.Body.String())
	}

	w = s.do(t, http.MethodPost, "/api/v1/attempts", player, StartAttemptRequest{TopicID: topic.ID})
	expectStatus(t, w, http.StatusCreated)
	var start quiz.Start
	decode(t, w, &start)
	if start.Question == nil || start.Question.Number != 1 {
		t.Fatalf("Expected first question, got %s", w.Body.String())
	}
	if bytes.Contains(w.Body.Bytes(), []byte("is_correct")) {
		t.Error("Question payload must not reveal correct choices")
	}

	attemptPath := fmt.Sprintf("/api/v1/attempts/%d", start.Attempt.ID)
	for {
		w = s.do(t, http.MethodGet, attemptPath+"/next", player, nil)
		expectStatus(t, w, http.StatusOK)
		var next quiz.Next
		decode(t, w, &next)
		if next.Completed {
			break
		}
		// The first choice is the correct one for every question above
		w = s.do(t, http.MethodPost, attemptPath+"/answers", player, SubmitAnswerRequest{
			QuestionID: next.Question.ID,
			ChoiceID:   next.Question.Choices[0].ID,
		})
		expectStatus(t, w, http.StatusOK)
		var sub quiz.Submission
		decode(t, w, &sub)
		if !sub.IsCorrect {
			t.Errorf("Expected correct answer, got %s", w.Body.String())
		}
		if sub.Next.Completed {
			break
		}
	}

	w = s.do(t, http.MethodGet, attemptPath+"/result", player, nil)
	expectStatus(t, w, http.StatusOK)
	var result quiz.Result
	decode(t, w, &result)
	if result.Score != 3 || result.TotalQuestions != 3 || result.Percentage != 100 || result.Status != "completed" {
		t.Errorf("Unexpected result: %s", w.Body.String())
	}

	w = s.do(t, http.MethodGet, attemptPath+"/next", player, nil)
	expectError(t, w, http.StatusBadRequest, "attempt_completed")

	w = s.do(t, http.MethodGet, attemptPath+"/review", player, nil)
	expectStatus(t, w, http.StatusOK)
	var review quiz.Review
	decode(t, w, &review)
	if len(review.Items) != 3 {
		t.Errorf("Expected 3 review items, got %d", len(review.Items))
	}

	w = s.do(t, http.MethodGet, "/api/v1/attempts", player, nil)
	expectStatus(t, w, http.StatusOK)
	var history []quiz.Result
	decode(t, w, &history)
	if len(history) != 1 {
		t.Errorf("Expected 1 attempt in history, got %d", len(history))
	}
}

func TestAttemptErrors(t *testing.T) {
	s := newTestServer(t)
	alice := s.token(t, "alice")
	bob := s.token(t, "bob")
	topic, questions := dbtest.Topic(t, s.db, "Algebra", 2)
	empty, _ := dbtest.Topic(t, s.db, "Empty", 0)

	w := s.do(t, http.MethodPost, "/api/v1/attempts", "", StartAttemptRequest{TopicID: topic.ID})
	expectError(t, w, http.StatusUnauthorized, "unauthenticated")

	w = s.do(t, http.MethodPost, "/api/v1/attempts", alice, StartAttemptRequest{TopicID: empty.ID})
	expectError(t, w, http.StatusBadRequest, "empty_topic")

	w = s.do(t, http.MethodPost, "/api/v1/attempts", alice, StartAttemptRequest{TopicID: 9999})
	expectError(t, w, http.StatusNotFound, "not_found")

	w = s.do(t, http.MethodPost, "/api/v1/attempts", alice, StartAttemptRequest{TopicID: topic.ID})
	expectStatus(t, w, http.StatusCreated)
	var start quiz.Start
	decode(t, w, &start)
	attemptPath := fmt.Sprintf("/api/v1/attempts/%d", start.Attempt.ID)

	w = s.do(t, http.MethodGet, attemptPath+"/result", bob, nil)
	expectError(t, w, http.StatusNotFound, "not_found")

	w = s.do(t, http.MethodPost, attemptPath+"/answers", alice, SubmitAnswerRequest{
		QuestionID: questions[0].ID,
		ChoiceID:   questions[1].Choices[0].ID,
	})
	expectError(t, w, http.StatusBadRequest, "invalid_choice")

	answer := SubmitAnswerRequest{QuestionID: questions[0].ID, ChoiceID: questions[0].Choices[1].ID}
	w = s.do(t, http.MethodPost, attemptPath+"/answers", alice, answer)
	expectStatus(t, w, http.StatusOK)
	w = s.do(t, http.MethodPost, attemptPath+"/answers", alice, answer)
	expectError(t, w, http.StatusBadRequest, "duplicate_answer")

	w = s.do(t, http.MethodGet, "/api/v1/attempts/abc/result", alice, nil)
	expectError(t, w, http.StatusBadRequest, "bad_request")
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	s := newTestServer(t)
	player := s.token(t, "player")

	w := s.do(t, http.MethodPost, "/api/v1/subjects", player, SubjectRequest{Name: "History"})
	expectError(t, w, http.StatusForbidden, "forbidden")

	w = s.do(t, http.MethodGet, "/api/v1/bad-passwords", "", nil)
	expectError(t, w, http.StatusUnauthorized, "unauthenticated")

	w = s.do(t, http.MethodGet, "/api/v1/subjects", "", nil)
	expectStatus(t, w, http.StatusOK)

	// Registering a privileged-looking name does not grant admin rights
	w = s.do(t, http.MethodPost, "/api/v1/auth/register", "", RegisterRequest{Username: "admin", Password: "Str0ng!Pass"})
	expectStatus(t, w, http.StatusCreated)
	var squatter AuthResponse
	decode(t, w, &squatter)
	w = s.do(t, http.MethodPost, "/api/v1/subjects", squatter.Token, SubjectRequest{Name: "History"})
	expectError(t, w, http.StatusForbidden, "forbidden")
}

func TestDeleteAnsweredContentConflicts(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken(t)
	player := s.token(t, "player")
	topic, questions := dbtest.Topic(t, s.db, "Algebra", 2)

	w := s.do(t, http.MethodPost, "/api/v1/attempts", player, StartAttemptRequest{TopicID: topic.ID})
	expectStatus(t, w, http.StatusCreated)
	var start quiz.Start
	decode(t, w, &start)

	q := questions[0]
	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/attempts/%d/answers", start.Attempt.ID), player,
		SubmitAnswerRequest{QuestionID: q.ID, ChoiceID: q.Choices[0].ID})
	expectStatus(t, w, http.StatusOK)

	w = s.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/choices/%d", q.Choices[0].ID), admin, nil)
	expectError(t, w, http.StatusConflict, "conflict")
	w = s.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/questions/%d", q.ID), admin, nil)
	expectError(t, w, http.StatusConflict, "conflict")

	w = s.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/questions/%d", questions[1].ID), admin, nil)
	expectStatus(t, w, http.StatusOK)
}

func TestCreateQuestionWithoutCorrectChoice(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken(t)
	topic, _ := dbtest.Topic(t, s.db, "Algebra", 0)

	w := s.do(t, http.MethodPost, "/api/v1/questions", admin, QuestionRequest{
		TopicID: topic.ID,
		Text:    "Pick one",
		Choices: []ChoiceRequest{{Text: "a"}, {Text: "b"}},
	})
	expectError(t, w, http.StatusBadRequest, "validation")
}

func TestRegisterAndMe(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/auth/register", "", RegisterRequest{Username: "carol", Password: "weak"})
	expectError(t, w, http.StatusBadRequest, "validation")
	var resp ErrorResponse
	decode(t, w, &resp)
	if len(resp.Details) == 0 {
		t.Error("Expected validation details")
	}

	w = s.do(t, http.MethodPost, "/api/v1/auth/register", "", RegisterRequest{Username: "carol", Password: "Str0ng!Pass", FirstName: "Carol"})
	expectStatus(t, w, http.StatusCreated)

	w = s.do(t, http.MethodPost, "/api/v1/auth/register", "", RegisterRequest{Username: "carol", Password: "Str0ng!Pass"})
	expectError(t, w, http.StatusConflict, "conflict")

	w = s.do(t, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Username: "carol", Password: "Wrong!Pass1"})
	expectError(t, w, http.StatusUnauthorized, "unauthenticated")

	w = s.do(t, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Username: "carol", Password: "Str0ng!Pass"})
	expectStatus(t, w, http.StatusOK)
	var login AuthResponse
	decode(t, w, &login)

	w = s.do(t, http.MethodGet, "/api/v1/auth/me", login.Token, nil)
	expectStatus(t, w, http.StatusOK)
	var me struct {
		Username     string `json:"username"`
		PasswordHash string `json:"password_hash"`
	}
	decode(t, w, &me)
	if me.Username != "carol" || me.PasswordHash != "" {
		t.Errorf("Unexpected profile: %s", w.Body.String())
	}
}

func TestImportUpload(t *testing.T) {
	s := newTestServer(t)
	admin := s.adminToken(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "questions.csv")
	if err != nil {
		t.Fatalf("CreateFormFile failed: %v", err)
	}
	fmt.Fprint(part, "Subject,Topic,Question,Explanation,Image,Correct,A,B\nScience,Physics,Unit of force,,,B,Joule,Newton\n")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+admin)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	expectStatus(t, w, http.StatusOK)
	var result excel.ImportResult
	decode(t, w, &result)
	if result.Created != 1 || result.SubjectsCreated != 1 || result.TopicsCreated != 1 {
		t.Errorf("Unexpected import result: %s", w.Body.String())
	}
}
