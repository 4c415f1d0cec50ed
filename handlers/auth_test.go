package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"barberops-backend/models"
)

func TestRegisterCreatesCustomer(t *testing.T) {
	db := freshDB()
	h := &AuthHandler{DB: db}

	r := gin.New()
	r.POST("/register", h.Register)

	w := doJSON(r, "POST", "/register", gin.H{
		"email":    "newuser@test.com",
		"password": "password123",
		"name":     "New User",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["token"] == nil || resp["token"] == "" {
		t.Error("expected a token in the response")
	}
	if resp["refresh_token"] == nil {
		t.Error("expected a refresh token in the response")
	}

	var user models.User
	if err := db.Where("email = ?", "newuser@test.com").First(&user).Error; err != nil {
		t.Fatal("user was not persisted")
	}
	if user.Role != "customer" {
		t.Errorf("expected role customer, got %s", user.Role)
	}
	if user.Password == "password123" {
		t.Error("password was stored in plaintext")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	db := freshDB()
	seedUser(db, "taken@test.com", "password123", "customer")
	h := &AuthHandler{DB: db}

	r := gin.New()
	r.POST("/register", h.Register)

	w := doJSON(r, "POST", "/register", gin.H{
		"email":    "taken@test.com",
		"password": "password123",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	db := freshDB()
	h := &AuthHandler{DB: db}

	r := gin.New()
	r.POST("/register", h.Register)

	w := doJSON(r, "POST", "/register", gin.H{
		"email":    "short@test.com",
		"password": "short",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestLoginSuccess(t *testing.T) {
	db := freshDB()
	seedUser(db, "login@test.com", "password123", "customer")
	h := &AuthHandler{DB: db}

	r := gin.New()
	r.POST("/login", h.Login)

	w := doJSON(r, "POST", "/login", gin.H{
		"email":    "login@test.com",
		"password": "password123",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["token"] == nil {
		t.Error("expected a token")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	db := freshDB()
	seedUser(db, "login2@test.com", "password123", "customer")
	h := &AuthHandler{DB: db}

	r := gin.New()
	r.POST("/login", h.Login)

	w := doJSON(r, "POST", "/login", gin.H{
		"email":    "login2@test.com",
		"password": "wrong-password",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", w.Code, w.Body.String())
	}
}

func TestLoginBlockedUser(t *testing.T) {
	db := freshDB()
	user := seedUser(db, "blocked@test.com", "password123", "customer")
	db.Model(&user).Update("is_blocked", true)
	h := &AuthHandler{DB: db}

	r := gin.New()
	r.POST("/login", h.Login)

	w := doJSON(r, "POST", "/login", gin.H{
		"email":    "blocked@test.com",
		"password": "password123",
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", w.Code, w.Body.String())
	}
}

func TestLoginStaffIncludesBranch(t *testing.T) {
	db := freshDB()
	branch := models.Branch{ID: uuid.New(), Name: "Makati Branch", IsActive: true}
	db.Create(&branch)

	user := seedUser(db, "staff@test.com", "password123", "staff")
	db.Model(&user).Update("branch_id", branch.ID)

	h := &AuthHandler{DB: db}
	r := gin.New()
	r.POST("/login", h.Login)

	w := doJSON(r, "POST", "/login", gin.H{
		"email":    "staff@test.com",
		"password": "password123",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &resp)
	branchPayload, ok := resp["branch"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected branch payload, got: %s", w.Body.String())
	}
	if branchPayload["name"] != "Makati Branch" {
		t.Errorf("expected branch name in payload, got %v", branchPayload["name"])
	}
}

func TestGetProfileIncludesLoyaltyBalances(t *testing.T) {
	db := freshDB()
	user := seedUser(db, "profile@test.com", "password123", "customer")

	h := &AuthHandler{DB: db}
	r := gin.New()
	r.GET("/profile", authAs(user.ID, user.Role), h.GetProfile)

	w := doJSON(r, "GET", "/profile", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if _, ok := resp["points"]; !ok {
		t.Error("expected points balances in profile")
	}
	if _, ok := resp["wallet"]; !ok {
		t.Error("expected wallet balances in profile")
	}
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	db := freshDB()
	user := seedUser(db, "changepw@test.com", "password123", "customer")

	h := &AuthHandler{DB: db}
	r := gin.New()
	r.POST("/change-password", authAs(user.ID, user.Role), h.ChangePassword)

	w := doJSON(r, "POST", "/change-password", gin.H{
		"old_password": "not-the-password",
		"new_password": "newpassword123",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRefreshTokenRotation(t *testing.T) {
	db := freshDB()
	seedUser(db, "rotate@test.com", "password123", "customer")
	h := &AuthHandler{DB: db}

	r := gin.New()
	r.POST("/login", h.Login)
	r.POST("/refresh", h.RefreshTokenHandler)

	w := doJSON(r, "POST", "/login", gin.H{
		"email":    "rotate@test.com",
		"password": "password123",
	})
	var loginResp map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &loginResp)
	refreshToken := loginResp["refresh_token"].(string)

	// First refresh succeeds and returns a new pair
	w2 := doJSON(r, "POST", "/refresh", gin.H{"refresh_token": refreshToken})
	if w2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w2.Code, w2.Body.String())
	}

	// Reusing the revoked token fails
	w3 := doJSON(r, "POST", "/refresh", gin.H{"refresh_token": refreshToken})
	if w3.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 on token reuse, got %d: %s", w3.Code, w3.Body.String())
	}
}

func TestUpdateUserCannotChangeOwnRole(t *testing.T) {
	db := freshDB()
	admin := seedUser(db, "admin@test.com", "password123", "super_admin")

	h := &AuthHandler{DB: db}
	r := gin.New()
	r.PUT("/users/:id", authAs(admin.ID, admin.Role), h.UpdateUser)

	w := doJSON(r, "PUT", "/users/"+admin.ID.String(), gin.H{"role": "customer"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestUpdateUserRejectsUnknownRole(t *testing.T) {
	db := freshDB()
	admin := seedUser(db, "admin2@test.com", "password123", "super_admin")
	target := seedUser(db, "target@test.com", "password123", "customer")

	h := &AuthHandler{DB: db}
	r := gin.New()
	r.PUT("/users/:id", authAs(admin.ID, admin.Role), h.UpdateUser)

	w := doJSON(r, "PUT", "/users/"+target.ID.String(), gin.H{"role": "owner"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestUpdateUserPromotesToStaff(t *testing.T) {
	db := freshDB()
	admin := seedUser(db, "admin3@test.com", "password123", "super_admin")
	target := seedUser(db, "promote@test.com", "password123", "customer")

	h := &AuthHandler{DB: db}
	r := gin.New()
	r.PUT("/users/:id", authAs(admin.ID, admin.Role), h.UpdateUser)

	w := doJSON(r, "PUT", "/users/"+target.ID.String(), gin.H{"role": "staff"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var updated models.User
	db.First(&updated, "id = ?", target.ID)
	if updated.Role != "staff" {
		t.Errorf("expected role staff, got %s", updated.Role)
	}
}
