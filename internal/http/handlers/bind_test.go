package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geocoder89/accounthub/internal/http/handlers"
	"github.com/gin-gonic/gin"
)

type bindProbe struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

func bindRouter(out *bindProbe) *gin.Engine {
	r := gin.New()

	r.POST("/probe", func(ctx *gin.Context) {
		if !handlers.BindJSON(ctx, out) {
			return
		}
		ctx.Status(http.StatusOK)
	})

	return r
}

func TestBindJSONReportsJSONFieldNames(t *testing.T) {
	var probe bindProbe
	r := bindRouter(&probe)

	req := httptest.NewRequest(http.MethodPost, "/probe", bytes.NewBufferString(`{"email": "nope", "password": "short"}`))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	var body struct {
		Error struct {
			Details struct {
				Fields []handlers.FieldError `json:"fields"`
			} `json:"details"`
		} `json:"error"`
	}

	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}

	fields := map[string]string{}
	for _, fe := range body.Error.Details.Fields {
		fields[fe.Field] = fe.Rule
	}

	if fields["email"] != "email" {
		t.Fatalf("email error not reported by json name: %v", fields)
	}
	if fields["password"] != "min" {
		t.Fatalf("password error not reported by json name: %v", fields)
	}
}

func TestBindJSONMalformedBody(t *testing.T) {
	var probe bindProbe
	r := bindRouter(&probe)

	req := httptest.NewRequest(http.MethodPost, "/probe", bytes.NewBufferString(`{not json`))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}
}
