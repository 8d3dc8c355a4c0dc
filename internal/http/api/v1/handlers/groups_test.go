package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	dbpkg "github.com/mop1016/expense-tracker-backend/internal/db"
	"github.com/mop1016/expense-tracker-backend/internal/groups"
	"github.com/mop1016/expense-tracker-backend/internal/models"
)

func newGroupHandler(t *testing.T) (*GroupHandler, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	conn, errOpen := dbpkg.Open(":memory:")
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := dbpkg.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return NewGroupHandler(conn, groups.NewService(conn)), conn
}

func seedUser(t *testing.T, conn *gorm.DB, username string) *models.User {
	t.Helper()
	user := models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "hash",
		FullName: "User " + username,
		IsActive: true,
	}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	return &user
}

func jsonContext(t *testing.T, userID uint64, method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set("userID", userID)
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	c.Request = httptest.NewRequest(method, target, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func TestGroupHandlerCreateAndGet(t *testing.T) {
	h, conn := newGroupHandler(t)
	alice := seedUser(t, conn, "alice")

	c, w := jsonContext(t, alice.ID, http.MethodPost, "/api/v1/groups", `{"name":"家庭開銷","description":"bills"}`)
	h.Create(c)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d body=%s", w.Code, w.Body.String())
	}

	var created struct {
		Group struct {
			ID          uint64 `json:"id"`
			MemberCount int    `json:"member_count"`
		} `json:"group"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &created); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if created.Group.MemberCount != 1 {
		t.Fatalf("expected 1 member, got %d", created.Group.MemberCount)
	}

	// The creator can read the group back.
	c, w = jsonContext(t, alice.ID, http.MethodGet, "/api/v1/groups/1", "")
	c.Params = gin.Params{{Key: "id", Value: fmt.Sprint(created.Group.ID)}}
	h.Get(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", w.Code, w.Body.String())
	}

	// Outsiders are rejected.
	bob := seedUser(t, conn, "bob")
	c, w = jsonContext(t, bob.ID, http.MethodGet, "/api/v1/groups/1", "")
	c.Params = gin.Params{{Key: "id", Value: fmt.Sprint(created.Group.ID)}}
	h.Get(c)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d body=%s", w.Code, w.Body.String())
	}
}

func TestGroupHandlerDuplicateNameMapsToConflict(t *testing.T) {
	h, conn := newGroupHandler(t)
	alice := seedUser(t, conn, "alice")

	c, w := jsonContext(t, alice.ID, http.MethodPost, "/api/v1/groups", `{"name":"旅遊"}`)
	h.Create(c)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", w.Code)
	}

	c, w = jsonContext(t, alice.ID, http.MethodPost, "/api/v1/groups", `{"name":"旅遊"}`)
	h.Create(c)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d body=%s", w.Code, w.Body.String())
	}
}

func TestGroupHandlerInvitationRespondValidation(t *testing.T) {
	h, conn := newGroupHandler(t)
	alice := seedUser(t, conn, "alice")
	bob := seedUser(t, conn, "bob")

	c, w := jsonContext(t, alice.ID, http.MethodPost, "/api/v1/groups", `{"name":"聚餐"}`)
	h.Create(c)
	var created struct {
		Group struct {
			ID uint64 `json:"id"`
		} `json:"group"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	body := fmt.Sprintf(`{"invitee_id":%d}`, bob.ID)
	c, w = jsonContext(t, alice.ID, http.MethodPost, "/api/v1/groups/1/invitations", body)
	c.Params = gin.Params{{Key: "id", Value: fmt.Sprint(created.Group.ID)}}
	h.Invite(c)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d body=%s", w.Code, w.Body.String())
	}

	c, w = jsonContext(t, bob.ID, http.MethodGet, "/api/v1/invitations", "")
	h.Invitations(c)
	var listing struct {
		Invitations []struct {
			ID uint64 `json:"id"`
		} `json:"invitations"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &listing); errDecode != nil {
		t.Fatalf("decode invitations: %v", errDecode)
	}
	if len(listing.Invitations) != 1 {
		t.Fatalf("expected 1 invitation, got %d", len(listing.Invitations))
	}

	// Unknown actions are rejected before touching storage.
	c, w = jsonContext(t, bob.ID, http.MethodPost, "/api/v1/invitations/1/respond", `{"action":"maybe"}`)
	c.Params = gin.Params{{Key: "id", Value: fmt.Sprint(listing.Invitations[0].ID)}}
	h.Respond(c)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d body=%s", w.Code, w.Body.String())
	}

	c, w = jsonContext(t, bob.ID, http.MethodPost, "/api/v1/invitations/1/respond", `{"action":"accept"}`)
	c.Params = gin.Params{{Key: "id", Value: fmt.Sprint(listing.Invitations[0].ID)}}
	h.Respond(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", w.Code, w.Body.String())
	}
}
