package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"reelclub-backend/models"
)

func TestRegisterSuccess(t *testing.T) {
	db := freshDB()
	router := setupAuthRouter(db)

	body := map[string]string{
		"email":    "newmember@test.com",
		"password": "password123",
		"name":     "New Member",
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/api/auth/register", body))

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	resp := parseResponse(w)
	if resp["token"] == nil || resp["token"] == "" {
		t.Error("expected token in response")
	}
	member := resp["member"].(map[string]interface{})
	if member["email"] != "newmember@test.com" {
		t.Errorf("expected email newmember@test.com, got %v", member["email"])
	}
	if member["role"] != "member" {
		t.Errorf("expected role member, got %v", member["role"])
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	db := freshDB()
	router := setupAuthRouter(db)

	seedTestMember(db, "existing@test.com", "member")

	body := map[string]string{
		"email":    "existing@test.com",
		"password": "password123",
		"name":     "Duplicate Member",
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/api/auth/register", body))

	if w.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d: %s", w.Code, w.Body.String())
	}

	resp := parseResponse(w)
	if resp["error"] != "Email already registered" {
		t.Errorf("expected 'Email already registered', got %v", resp["error"])
	}
}

func TestRegisterValidationShortPassword(t *testing.T) {
	db := freshDB()
	router := setupAuthRouter(db)

	body := map[string]string{
		"email":    "short@test.com",
		"password": "short",
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/api/auth/register", body))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestLoginSuccess(t *testing.T) {
	db := freshDB()
	router := setupAuthRouter(db)

	seedTestMember(db, "login@test.com", "member")

	body := map[string]string{
		"email":    "login@test.com",
		"password": "password123",
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/api/auth/login", body))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := parseResponse(w)
	if resp["token"] == nil || resp["token"] == "" {
		t.Error("expected token in response")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	db := freshDB()
	router := setupAuthRouter(db)

	seedTestMember(db, "wrongpass@test.com", "member")

	body := map[string]string{
		"email":    "wrongpass@test.com",
		"password": "not-the-password",
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/api/auth/login", body))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d: %s", w.Code, w.Body.String())
	}
}

func TestLoginBlockedMember(t *testing.T) {
	db := freshDB()
	router := setupAuthRouter(db)

	member, _ := seedTestMember(db, "blocked@test.com", "member")
	db.Model(&member).Update("is_blocked", true)

	body := map[string]string{
		"email":    "blocked@test.com",
		"password": "password123",
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("POST", "/api/auth/login", body))

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetProfile(t *testing.T) {
	db := freshDB()
	router := setupAuthRouter(db)

	member, token := seedTestMember(db, "profile@test.com", "member")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authRequest("GET", "/api/auth/profile", nil, token))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := parseResponse(w)
	if resp["id"] != member.ID.String() {
		t.Errorf("expected id %s, got %v", member.ID, resp["id"])
	}
	if resp["email"] != "profile@test.com" {
		t.Errorf("expected email profile@test.com, got %v", resp["email"])
	}
}

func TestGetProfileUnauthorized(t *testing.T) {
	db := freshDB()
	router := setupAuthRouter(db)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest("GET", "/api/auth/profile", nil))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d: %s", w.Code, w.Body.String())
	}
}

func TestUpdateFCMToken(t *testing.T) {
	db := freshDB()
	router := setupAuthRouter(db)

	member, token := seedTestMember(db, "fcm@test.com", "member")

	body := map[string]string{"fcm_token": "device-token-abc"}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, authRequest("PUT", "/api/auth/fcm-token", body, token))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var updated models.Member
	if err := db.Where("id = ?", member.ID).First(&updated).Error; err != nil {
		t.Fatal(err)
	}
	if updated.FCMToken != "device-token-abc" {
		t.Errorf("expected stored token device-token-abc, got %q", updated.FCMToken)
	}
}

func TestListMembersRequiresAdmin(t *testing.T) {
	db := freshDB()
	router := setupAuthRouter(db)

	_, memberToken := seedTestMember(db, "plain@test.com", "member")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authRequest("GET", "/api/admin/members", nil, memberToken))

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d: %s", w.Code, w.Body.String())
	}
}

func TestListMembersPaginated(t *testing.T) {
	db := freshDB()
	router := setupAuthRouter(db)

	_, adminToken := seedTestMember(db, "admin@test.com", "admin")
	for i := 0; i < 5; i++ {
		seedTestMember(db, string(rune('a'+i))+"-member@test.com", "member")
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, authRequest("GET", "/api/admin/members?page=1&limit=3", nil, adminToken))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := parseResponse(w)
	if resp["total"].(float64) != 6 {
		t.Errorf("expected total 6, got %v", resp["total"])
	}
	members := resp["members"].([]interface{})
	if len(members) != 3 {
		t.Errorf("expected 3 members on page, got %d", len(members))
	}
}
