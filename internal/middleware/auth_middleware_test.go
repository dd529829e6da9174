package middleware

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"go-pos-ledger/internal/model"

	"github.com/gofiber/fiber/v2"
)

type fakeAuth struct {
	user *model.User
}

func (f fakeAuth) Authenticate(ctx context.Context, token string) (*model.User, error) {
	if token != "good" {
		return nil, errors.New("invalid or expired token")
	}
	return f.user, nil
}

func newApp(role model.Role, allowed ...model.Role) *fiber.App {
	app := fiber.New()
	user := &model.User{Name: "Ani", Email: "ani@example.com", Role: role}
	app.Get("/", RequireAuth(fakeAuth{user: user}), RequireRole(allowed...), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("user_name").(string))
	})
	return app
}

func TestRequireAuthRejectsMissingHeader(t *testing.T) {
	app := newApp(model.RoleAdmin, model.RoleAdmin)
	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != 401 {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestRequireAuthRejectsBadScheme(t *testing.T) {
	app := newApp(model.RoleAdmin, model.RoleAdmin)
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Token good")
	resp, _ := app.Test(req)
	if resp.StatusCode != 401 {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestRequireRole(t *testing.T) {
	cases := []struct {
		role    model.Role
		allowed []model.Role
		want    int
	}{
		{model.RoleAdmin, []model.Role{model.RoleAdmin, model.RoleManager}, 200},
		{model.RoleManager, []model.Role{model.RoleAdmin, model.RoleManager}, 200},
		{model.RoleCashier, []model.Role{model.RoleAdmin, model.RoleManager}, 403},
	}
	for _, tc := range cases {
		app := newApp(tc.role, tc.allowed...)
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer good")
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		if resp.StatusCode != tc.want {
			t.Fatalf("role %s: expected %d, got %d", tc.role, tc.want, resp.StatusCode)
		}
	}
}
