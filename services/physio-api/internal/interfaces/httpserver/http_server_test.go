package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"physio-server/pkg/observability"
	"physio-server/services/physio-api/internal/config"
	"physio-server/services/physio-api/internal/domain/chat"
	"physio-server/services/physio-api/internal/domain/dashboard"
	"physio-server/services/physio-api/internal/domain/device"
	"physio-server/services/physio-api/internal/domain/identity"
	"physio-server/services/physio-api/internal/domain/user"
	"physio-server/services/physio-api/internal/infrastructure/auth"
	"physio-server/services/physio-api/internal/infrastructure/cache"
	"physio-server/services/physio-api/internal/infrastructure/lock"
	"physio-server/services/physio-api/internal/infrastructure/presets"
	"physio-server/services/physio-api/internal/infrastructure/pubsub"
	"physio-server/services/physio-api/internal/infrastructure/repository/chatrepo"
	"physio-server/services/physio-api/internal/infrastructure/repository/devicerepo"
	"physio-server/services/physio-api/internal/infrastructure/repository/userrepo"
	"physio-server/services/physio-api/internal/interfaces/httpserver"
	"physio-server/services/physio-api/internal/interfaces/httpserver/handlers"
	"physio-server/services/physio-api/internal/interfaces/httpserver/routes"
)

const deviceKey = "test-device-key"

type okController struct {
	mu   sync.Mutex
	sent []device.ControllerCommand
}

func (c *okController) Send(_ context.Context, cmd device.ControllerCommand) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, cmd)
	return nil
}

func (c *okController) Connected() bool { return true }

type testServer struct {
	t       *testing.T
	handler http.Handler
}

func newTestServer(t *testing.T, checks ...httpserver.ReadinessCheck) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	log := zerolog.Nop()

	cfg := &config.Config{
		ServiceName:   "physio-api-test",
		Environment:   "test",
		CORSOrigins:   []string{"*"},
		JWTSecret:     strings.Repeat("s", 32),
		DevicesAPIKey: deviceKey,
	}
	obs, err := observability.Init(ctx, observability.DefaultConfig(cfg.ServiceName))
	require.NoError(t, err)
	t.Cleanup(func() { _ = obs.Shutdown(context.Background()) })

	memory, err := cache.NewMemoryCache(256)
	require.NoError(t, err)
	broker := pubsub.NewMemoryBroker()
	t.Cleanup(func() { _ = broker.Close() })
	catalog, err := presets.Load("", log)
	require.NoError(t, err)

	users := user.NewService(userrepo.NewInMemoryRepository(), cache.NewMemoryProfileCache(memory, time.Minute), obs.Sanitizer, 10, log)
	identityService := identity.NewService(users, auth.NewJWTIssuer(cfg.JWTSecret, "physio-test", time.Hour),
		auth.NewBcryptHasher(bcrypt.MinCost), nil, cache.NewMemoryRevocationList(memory), obs.Sanitizer, log)
	chatService := chat.NewService(chatrepo.NewInMemoryRepository(), users, broker, obs.Sanitizer, chat.Config{}, log)
	deviceService := device.NewService(devicerepo.NewInMemoryRepository(), &okController{}, lock.NewLocal(), users, catalog, broker, device.Config{}, log)
	dashboardService := dashboard.NewService(users, deviceService, log)

	handlerProvider := handlers.NewProvider(
		handlers.NewAuthHandler(identityService),
		handlers.NewUserHandler(users, dashboardService, deviceService),
		handlers.NewChatHandler(chatService),
		handlers.NewDeviceHandler(deviceService),
		handlers.NewStreamer(cfg, log),
	)
	server := httpserver.NewHTTPServer(cfg, routes.NewProvider(cfg, handlerProvider, identityService, log), obs, checks, log)
	return &testServer{t: t, handler: server.Handler()}
}

func (s *testServer) do(method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

type session struct {
	Token string `json:"token"`
	User  struct {
		ID   string `json:"id"`
		Role string `json:"role"`
	} `json:"user"`
}

func (s *testServer) signUp(email, role string) session {
	s.t.Helper()
	body := map[string]any{
		"email":     email,
		"password":  "correct-horse",
		"full_name": strings.Split(email, "@")[0],
		"role":      role,
	}
	if role == "doctor" {
		body["license_number"] = "LIC-1"
	}
	rec := s.do(http.MethodPost, "/v1/auth/signup", "", body)
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	var out session
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type errorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestHealthAndReadiness(t *testing.T) {
	srv := newTestServer(t,
		httpserver.ReadinessCheck{Name: "database", Check: func(context.Context) error { return nil }},
		httpserver.ReadinessCheck{Name: "controller", Optional: true, Check: func(context.Context) error { return errors.New("down") }},
	)

	rec := srv.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}](t, rec)
	assert.Equal(t, "ready", body.Status)
	assert.Equal(t, "ok", body.Checks["database"])
	assert.Equal(t, "down", body.Checks["controller"])

	failing := newTestServer(t, httpserver.ReadinessCheck{Name: "redis", Check: func(context.Context) error { return errors.New("refused") }})
	rec = failing.do(http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAuthFlow(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(http.MethodGet, "/v1/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	patient := srv.signUp("ana@example.com", "patient")
	assert.Equal(t, "patient", patient.User.Role)

	rec = srv.do(http.MethodPost, "/v1/auth/signup", "", map[string]any{
		"email": "doc@example.com", "password": "correct-horse", "full_name": "Doc", "role": "doctor",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "doctor without licence")

	rec = srv.do(http.MethodPost, "/v1/auth/signin", "", map[string]any{"email": "ana@example.com", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(http.MethodPost, "/v1/auth/signin", "", map[string]any{"email": "ana@example.com", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, rec.Code)
	signedIn := decode[session](t, rec)

	rec = srv.do(http.MethodGet, "/v1/me", signedIn.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"patient_data"`)

	rec = srv.do(http.MethodPost, "/v1/auth/oidc", "", map[string]any{"id_token": "x"})
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	rec = srv.do(http.MethodPost, "/v1/auth/signout", signedIn.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = srv.do(http.MethodGet, "/v1/me", signedIn.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChatFlow(t *testing.T) {
	srv := newTestServer(t)
	patient := srv.signUp("ana@example.com", "patient")
	doctor := srv.signUp("doc@example.com", "doctor")
	other := srv.signUp("bo@example.com", "patient")

	rec := srv.do(http.MethodPost, "/v1/conversations/"+other.User.ID+"/messages", patient.Token, map[string]any{"content": "hi"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "patients cannot message patients")

	rec = srv.do(http.MethodPost, "/v1/conversations/"+doctor.User.ID+"/messages", patient.Token, map[string]any{"content": "my knee hurts"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sent := decode[struct {
		ID             string `json:"id"`
		ConversationID string `json:"conversation_id"`
		SenderRole     string `json:"sender_role"`
	}](t, rec)
	assert.Equal(t, chat.ConversationID(patient.User.ID, doctor.User.ID), sent.ConversationID)
	assert.Equal(t, "patient", sent.SenderRole)

	rec = srv.do(http.MethodGet, "/v1/conversations/unread", doctor.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"unread":1}`, rec.Body.String())

	rec = srv.do(http.MethodGet, "/v1/conversations", doctor.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	convs := decode[struct {
		Data []struct {
			OtherUserID string `json:"other_user_id"`
			UnreadCount int    `json:"unread_count"`
			LastMessage string `json:"last_message"`
		} `json:"data"`
	}](t, rec)
	require.Len(t, convs.Data, 1)
	assert.Equal(t, patient.User.ID, convs.Data[0].OtherUserID)
	assert.Equal(t, 1, convs.Data[0].UnreadCount)
	assert.Equal(t, "my knee hurts", convs.Data[0].LastMessage)

	rec = srv.do(http.MethodGet, "/v1/conversations/"+patient.User.ID+"/messages?limit=abc", doctor.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(http.MethodGet, "/v1/conversations/"+patient.User.ID+"/messages?limit=10", doctor.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "my knee hurts")

	rec = srv.do(http.MethodPost, "/v1/conversations/"+patient.User.ID+"/read", doctor.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = srv.do(http.MethodGet, "/v1/conversations/unread", doctor.Token, nil)
	assert.JSONEq(t, `{"unread":0}`, rec.Body.String())

	rec = srv.do(http.MethodDelete, "/v1/conversations/"+patient.User.ID+"/messages/"+sent.ID, doctor.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden_error", decode[errorBody](t, rec).Error.Type)

	rec = srv.do(http.MethodDelete, "/v1/conversations/"+doctor.User.ID+"/messages/"+sent.ID, patient.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(http.MethodDelete, "/v1/conversations/"+patient.User.ID, doctor.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = srv.do(http.MethodGet, "/v1/conversations", doctor.Token, nil)
	assert.JSONEq(t, `{"data":[]}`, rec.Body.String())
}

func TestDoctorFlow(t *testing.T) {
	srv := newTestServer(t)
	patient := srv.signUp("ana@example.com", "patient")
	doctor := srv.signUp("doc@example.com", "doctor")

	rec := srv.do(http.MethodGet, "/v1/doctors/me/dashboard", patient.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(http.MethodGet, "/v1/patients/"+patient.User.ID+"/devices", doctor.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "not assigned yet")

	rec = srv.do(http.MethodPost, "/v1/doctors/me/patients", doctor.Token, map[string]any{"patient_id": patient.User.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = srv.do(http.MethodGet, "/v1/users/search?q=ana", doctor.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), patient.User.ID)

	rec = srv.do(http.MethodGet, "/v1/doctors/me/dashboard", doctor.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dash := decode[struct {
		Data []struct {
			Patient struct {
				ID string `json:"id"`
			} `json:"patient"`
			Devices []struct {
				Device string `json:"device"`
				Status string `json:"status"`
			} `json:"devices"`
		} `json:"data"`
	}](t, rec)
	require.Len(t, dash.Data, 1)
	assert.Equal(t, patient.User.ID, dash.Data[0].Patient.ID)
	assert.Len(t, dash.Data[0].Devices, len(device.Kinds))

	rec = srv.do(http.MethodGet, "/v1/patients/"+patient.User.ID+"/devices", doctor.Token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDeviceFlow(t *testing.T) {
	srv := newTestServer(t)
	patient := srv.signUp("ana@example.com", "patient")
	doctor := srv.signUp("doc@example.com", "doctor")

	rec := srv.do(http.MethodGet, "/v1/devices/presets", doctor.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "glove-basic")

	rec = srv.do(http.MethodPost, "/v1/devices/glove/start", doctor.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "doctors do not drive devices")

	rec = srv.do(http.MethodPost, "/v1/devices/treadmill/start", patient.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(http.MethodPost, "/v1/devices/glove/start", patient.Token, map[string]any{"preset_id": "glove-basic"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "running", decode[struct {
		Status string `json:"status"`
	}](t, rec).Status)

	rec = srv.do(http.MethodPost, "/v1/devices/glove/start", patient.Token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	report := map[string]any{"patient_id": patient.User.ID, "device": "glove", "progress": 100, "sensor_value": 12.5}
	rec = srv.do(http.MethodPost, "/v1/devices/status", "", report)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(http.MethodPost, "/v1/devices/status", "", report, "X-Device-Key", deviceKey)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "completed", decode[struct {
		Status string `json:"status"`
	}](t, rec).Status)

	rec = srv.do(http.MethodGet, "/v1/patients/me/exercises", patient.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"outcome":"completed"`)

	rec = srv.do(http.MethodPost, "/v1/devices/glove/emergency-stop", patient.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(http.MethodGet, "/v1/devices", patient.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"emergency_stopped"`)
}

func TestDeviceStream(t *testing.T) {
	srv := newTestServer(t)
	patient := srv.signUp("ana@example.com", "patient")

	ts := httptest.NewServer(srv.handler)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/devices/glove/stream?access_token=" + patient.Token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	type frame struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var first frame
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "idle", first.Data.Status)

	rec := srv.do(http.MethodPost, "/v1/devices/glove/start", patient.Token, map[string]any{"preset_id": "glove-basic"})
	require.Equal(t, http.StatusOK, rec.Code)

	var next frame
	require.NoError(t, conn.ReadJSON(&next))
	assert.Equal(t, "running", next.Data.Status)
}

func TestMessageStreamLeavesUnreadUntilAsked(t *testing.T) {
	srv := newTestServer(t)
	patient := srv.signUp("ana@example.com", "patient")
	doctor := srv.signUp("doc@example.com", "doctor")

	ts := httptest.NewServer(srv.handler)
	defer ts.Close()
	streamURL := func(query string) string {
		return "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/conversations/" + doctor.User.ID +
			"/messages/stream?access_token=" + patient.Token + query
	}
	type frame struct {
		Type string `json:"type"`
		Data []struct {
			Content string `json:"content"`
		} `json:"data"`
	}
	unread := func() string {
		return srv.do(http.MethodGet, "/v1/conversations/unread", patient.Token, nil).Body.String()
	}

	conn, _, err := websocket.DefaultDialer.Dial(streamURL(""), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var initial frame
	require.NoError(t, conn.ReadJSON(&initial))
	assert.Equal(t, "messages", initial.Type)
	assert.Empty(t, initial.Data)

	rec := srv.do(http.MethodPost, "/v1/conversations/"+patient.User.ID+"/messages", doctor.Token, map[string]any{"content": "how is the knee"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var delivered frame
	require.NoError(t, conn.ReadJSON(&delivered))
	require.Len(t, delivered.Data, 1)
	assert.Equal(t, "how is the knee", delivered.Data[0].Content)
	assert.JSONEq(t, `{"unread":1}`, unread(), "an open thread still counts as unread")

	marking, _, err := websocket.DefaultDialer.Dial(streamURL("&mark_read=true"), nil)
	require.NoError(t, err)
	defer marking.Close()
	require.NoError(t, marking.SetReadDeadline(time.Now().Add(2*time.Second)))
	var snapshot frame
	require.NoError(t, marking.ReadJSON(&snapshot))
	require.Len(t, snapshot.Data, 1)
	assert.Eventually(t, func() bool {
		return unread() == `{"unread":0}`
	}, 2*time.Second, 20*time.Millisecond)
}
