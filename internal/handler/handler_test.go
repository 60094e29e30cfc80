package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/workbridge/api/internal/middleware"
	"github.com/workbridge/api/internal/model"
	"github.com/workbridge/api/internal/service"
	"github.com/workbridge/api/internal/store"
)

const testJWTSecret = "test-secret-for-handlers"

// testApp wires the full API surface against an in-memory database. No
// Redis, no asynq: rate limiting is left off and notifications are skipped.
type testApp struct {
	app  *fiber.App
	auth *middleware.AuthMiddleware
	db   *store.DB
}

func setupApp(t *testing.T) *testApp {
	t.Helper()

	db, err := store.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { db.Close() })

	userStore := store.NewUserStore(db)
	jobStore := store.NewJobStore(db)
	bidStore := store.NewBidStore(db)
	messageStore := store.NewMessageStore(db)

	jobService := service.NewJobService(jobStore, bidStore, messageStore, nil)
	bidService := service.NewBidService(bidStore, jobStore, nil)
	messageService := service.NewMessageService(messageStore, jobStore, userStore, nil)

	validate := validator.New()
	jobHandler := NewJobHandler(jobService, validate)
	bidHandler := NewBidHandler(bidService, validate)
	messageHandler := NewMessageHandler(messageService, validate)

	authMiddleware := middleware.NewAuthMiddleware(testJWTSecret)

	app := fiber.New()
	api := app.Group("/api", authMiddleware.Authenticate())

	jobs := api.Group("/jobs")
	jobs.Get("/", jobHandler.Search)
	jobs.Post("/", jobHandler.Create)
	jobs.Get("/mine", jobHandler.Mine)
	jobs.Get("/dashboard", jobHandler.Dashboard)
	jobs.Get("/:id", jobHandler.Get)
	jobs.Put("/:id", jobHandler.Update)
	jobs.Delete("/:id", jobHandler.Delete)
	jobs.Post("/:id/ready", jobHandler.MarkReady)
	jobs.Get("/:id/bids", bidHandler.ListForJob)
	jobs.Post("/:id/bids", bidHandler.Submit)

	bids := api.Group("/bids")
	bids.Get("/mine", bidHandler.Mine)
	bids.Get("/:id", bidHandler.Get)
	bids.Post("/:id/accept", bidHandler.Accept)
	bids.Post("/:id/reject", bidHandler.Reject)
	bids.Post("/:id/withdraw", bidHandler.Withdraw)

	messages := api.Group("/messages")
	messages.Post("/", messageHandler.Send)
	messages.Get("/inbox", messageHandler.Inbox)
	messages.Get("/unread", messageHandler.UnreadCount)
	messages.Get("/:jobId", messageHandler.Conversation)

	ta := &testApp{app: app, auth: authMiddleware, db: db}
	ta.addUser(t, "client1", model.RoleClient)
	ta.addUser(t, "fl1", model.RoleFreelancer)
	return ta
}

func (ta *testApp) addUser(t *testing.T, id string, role model.Role) {
	t.Helper()
	err := store.NewUserStore(ta.db).Create(context.Background(), &model.User{
		ID:        id,
		Name:      "User " + id,
		Email:     id + "@example.com",
		Role:      role,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
}

func (ta *testApp) token(t *testing.T, userID string, role model.Role) string {
	t.Helper()
	token, err := ta.auth.GenerateToken(userID, userID+"@example.com", role)
	require.NoError(t, err)
	return token
}

func (ta *testApp) request(t *testing.T, method, path, body, token string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, path, bodyReader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &result), "body: %s", string(b))
	return result
}

func jobBody(title string) string {
	deadline := time.Now().Add(30 * 24 * time.Hour).Format(time.RFC3339)
	return fmt.Sprintf(`{
		"title": %q,
		"description": "Responsive landing page",
		"skills": ["html", "css"],
		"budget": {"min": 100, "max": 500},
		"deadline": %q
	}`, title, deadline)
}

func bidBody(amount float64) string {
	delivery := time.Now().Add(7 * 24 * time.Hour).Format(time.RFC3339)
	return fmt.Sprintf(`{
		"proposal": "I can deliver this within a week.",
		"bidAmount": %g,
		"estimatedDelivery": %q
	}`, amount, delivery)
}

func (ta *testApp) createJob(t *testing.T, clientToken string) string {
	t.Helper()
	resp := ta.request(t, "POST", "/api/jobs/", jobBody("Build a landing page"), clientToken)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := parseJSON(t, resp)
	data := body["data"].(map[string]interface{})
	return data["id"].(string)
}

func TestJobEndpoints_AuthRequired(t *testing.T) {
	ta := setupApp(t)

	resp := ta.request(t, "GET", "/api/jobs/", "", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = ta.request(t, "GET", "/api/jobs/", "", "not-a-token")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestJobEndpoints_CreateAndGet(t *testing.T) {
	ta := setupApp(t)
	clientToken := ta.token(t, "client1", model.RoleClient)

	jobID := ta.createJob(t, clientToken)

	resp := ta.request(t, "GET", "/api/jobs/"+jobID, "", clientToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := parseJSON(t, resp)
	require.Equal(t, true, body["success"])
	data := body["data"].(map[string]interface{})
	require.Equal(t, "Build a landing page", data["title"])
	require.Equal(t, "open", data["status"])
	require.Equal(t, "User client1", data["clientInfo"].(map[string]interface{})["name"])

	resp = ta.request(t, "GET", "/api/jobs/missing", "", clientToken)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestJobEndpoints_CreateValidation(t *testing.T) {
	ta := setupApp(t)
	clientToken := ta.token(t, "client1", model.RoleClient)

	resp := ta.request(t, "POST", "/api/jobs/", `{"title": "x"}`, clientToken)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := parseJSON(t, resp)
	require.Equal(t, false, body["success"])
	errDetail := body["error"].(map[string]interface{})
	require.Equal(t, "VALIDATION_ERROR", errDetail["code"])
	require.Contains(t, errDetail["details"], "Title")
}

func TestBidEndpoints_SubmitAndConflict(t *testing.T) {
	ta := setupApp(t)
	clientToken := ta.token(t, "client1", model.RoleClient)
	flToken := ta.token(t, "fl1", model.RoleFreelancer)

	jobID := ta.createJob(t, clientToken)

	resp := ta.request(t, "POST", "/api/jobs/"+jobID+"/bids", bidBody(200), flToken)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Second bid from the same freelancer conflicts
	resp = ta.request(t, "POST", "/api/jobs/"+jobID+"/bids", bidBody(250), flToken)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	body := parseJSON(t, resp)
	require.Equal(t, "CONFLICT", body["error"].(map[string]interface{})["code"])

	// Clients cannot bid at all
	resp = ta.request(t, "POST", "/api/jobs/"+jobID+"/bids", bidBody(300), clientToken)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRoleDispatch(t *testing.T) {
	ta := setupApp(t)
	clientToken := ta.token(t, "client1", model.RoleClient)
	flToken := ta.token(t, "fl1", model.RoleFreelancer)

	// Posting jobs is a client action
	resp := ta.request(t, "POST", "/api/jobs/", jobBody("Freelancer posting"), flToken)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	body := parseJSON(t, resp)
	require.Equal(t, "FORBIDDEN", body["error"].(map[string]interface{})["code"])

	// The dashboard is a freelancer view
	resp = ta.request(t, "GET", "/api/jobs/dashboard", "", clientToken)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ta.request(t, "GET", "/api/jobs/dashboard", "", flToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBidEndpoints_AcceptFlow(t *testing.T) {
	ta := setupApp(t)
	ta.addUser(t, "fl2", model.RoleFreelancer)
	clientToken := ta.token(t, "client1", model.RoleClient)
	flToken := ta.token(t, "fl1", model.RoleFreelancer)
	fl2Token := ta.token(t, "fl2", model.RoleFreelancer)

	jobID := ta.createJob(t, clientToken)

	resp := ta.request(t, "POST", "/api/jobs/"+jobID+"/bids", bidBody(200), flToken)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	bidID := parseJSON(t, resp)["data"].(map[string]interface{})["id"].(string)

	resp = ta.request(t, "POST", "/api/jobs/"+jobID+"/bids", bidBody(300), fl2Token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	bid2ID := parseJSON(t, resp)["data"].(map[string]interface{})["id"].(string)

	// Freelancers cannot accept
	resp = ta.request(t, "POST", "/api/bids/"+bidID+"/accept", "", flToken)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = ta.request(t, "POST", "/api/bids/"+bidID+"/accept", "", clientToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := parseJSON(t, resp)["data"].(map[string]interface{})
	require.Equal(t, "accepted", data["status"])

	// Second acceptance conflicts
	resp = ta.request(t, "POST", "/api/bids/"+bid2ID+"/accept", "", clientToken)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	// The accepted freelancer completes the job
	resp = ta.request(t, "POST", "/api/jobs/"+jobID+"/ready", "", flToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ta.request(t, "GET", "/api/jobs/"+jobID, "", clientToken)
	data = parseJSON(t, resp)["data"].(map[string]interface{})
	require.Equal(t, "completed", data["status"])
}

func TestMessageEndpoints_Gating(t *testing.T) {
	ta := setupApp(t)
	ta.addUser(t, "fl2", model.RoleFreelancer)
	clientToken := ta.token(t, "client1", model.RoleClient)
	flToken := ta.token(t, "fl1", model.RoleFreelancer)
	fl2Token := ta.token(t, "fl2", model.RoleFreelancer)

	jobID := ta.createJob(t, clientToken)
	msgBody := fmt.Sprintf(`{"jobId": %q, "content": "Hello"}`, jobID)

	// No accepted freelancer yet
	resp := ta.request(t, "POST", "/api/messages/", msgBody, clientToken)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = ta.request(t, "POST", "/api/jobs/"+jobID+"/bids", bidBody(200), flToken)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	bidID := parseJSON(t, resp)["data"].(map[string]interface{})["id"].(string)
	resp = ta.request(t, "POST", "/api/bids/"+bidID+"/accept", "", clientToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = ta.request(t, "POST", "/api/messages/", msgBody, clientToken)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := parseJSON(t, resp)["data"].(map[string]interface{})
	require.Equal(t, "fl1", data["recipient"])

	// Outsiders are rejected
	resp = ta.request(t, "POST", "/api/messages/", msgBody, fl2Token)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	// The freelancer reads the conversation
	resp = ta.request(t, "GET", "/api/messages/"+jobID, "", flToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	conv := parseJSON(t, resp)["data"].(map[string]interface{})
	require.Len(t, conv["messages"].([]interface{}), 1)

	resp = ta.request(t, "GET", "/api/messages/"+jobID, "", fl2Token)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}
