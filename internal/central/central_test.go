package central

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/riftlink/relay/internal/logging"
)

const testProtocol uint16 = 1

func TestRequestBootData_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/gs/boot" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("pw"); got != "hunter2" {
			t.Errorf("pw = %q, want hunter2", got)
		}
		w.Write([]byte(`relay_boot:{"protocol":1,"tps":30,"token_expiry":3600,"maintenance":false,"secret_key":"sk","secret_key2":"sk2","admin_key":"ak","chat_blocked":[4]}`))
	}))
	defer srv.Close()

	bridge := New(srv.URL, "hunter2", testProtocol, logging.NopLogger())

	data, err := bridge.RequestBootData(context.Background())
	if err != nil {
		t.Fatalf("RequestBootData failed: %v", err)
	}
	if data.TPS != 30 || data.TokenExpiry != 3600 || data.AdminKey != "ak" {
		t.Errorf("unexpected boot data: %+v", data)
	}
	if len(data.ChatBlocked) != 1 || data.ChatBlocked[0] != 4 {
		t.Errorf("unexpected chat block list: %v", data.ChatBlocked)
	}
}

func TestRequestBootData_Classification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		errType func(error) bool
	}{
		{
			name:   "central error status",
			status: http.StatusUnauthorized,
			body:   "bad password",
			errType: func(err error) bool {
				var ce *CentralError
				return errors.As(err, &ce) && ce.Code == http.StatusUnauthorized && ce.Body == "bad password"
			},
		},
		{
			name:   "invalid magic",
			status: http.StatusOK,
			body:   "<html>not a central server</html>",
			errType: func(err error) bool {
				var ime *InvalidMagicError
				return errors.As(err, &ime)
			},
		},
		{
			name:   "malformed payload",
			status: http.StatusOK,
			body:   "relay_boot:{not json",
			errType: func(err error) bool {
				var mde *MalformedDataError
				return errors.As(err, &mde)
			},
		},
		{
			name:   "protocol mismatch",
			status: http.StatusOK,
			body:   `relay_boot:{"protocol":9}`,
			errType: func(err error) bool {
				var pme *ProtocolMismatchError
				return errors.As(err, &pme) && pme.Central == 9 && pme.Ours == testProtocol
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			bridge := New(srv.URL, "pw", testProtocol, logging.NopLogger())
			_, err := bridge.RequestBootData(context.Background())
			if err == nil {
				t.Fatal("expected an error")
			}
			if !tt.errType(err) {
				t.Errorf("wrong error classification: %v", err)
			}
		})
	}
}

func TestRequestBootData_TransportError(t *testing.T) {
	// Nothing listens here.
	bridge := New("http://127.0.0.1:1/", "pw", testProtocol, logging.NopLogger())

	_, err := bridge.RequestBootData(context.Background())
	var re *RequestError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RequestError, got %v", err)
	}
}

func TestVerifyToken_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		q := r.URL.Query()
		if q.Get("account_id") != "5" || q.Get("token") != "abc" || q.Get("pw") != "pw" {
			t.Errorf("unexpected query: %v", q)
		}
		w.Write([]byte("status_ok:Alice"))
	}))
	defer srv.Close()

	bridge := New(srv.URL, "pw", testProtocol, logging.NopLogger())

	name, err := bridge.VerifyToken(context.Background(), 5, "abc")
	if err != nil {
		t.Fatalf("VerifyToken failed: %v", err)
	}
	if name != "Alice" {
		t.Errorf("name = %q, want Alice", name)
	}
}

func TestVerifyToken_Denied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("status_denied:bad token"))
	}))
	defer srv.Close()

	bridge := New(srv.URL, "pw", testProtocol, logging.NopLogger())

	_, err := bridge.VerifyToken(context.Background(), 5, "abc")
	var denied *AuthDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected *AuthDeniedError, got %v", err)
	}
	if denied.Response != "status_denied:bad token" {
		t.Errorf("response = %q, want full rejection text", denied.Response)
	}
}

func TestVerifyToken_Standalone(t *testing.T) {
	bridge := New("", "", testProtocol, logging.NopLogger())

	if !bridge.Standalone() {
		t.Fatal("expected standalone mode")
	}
	if _, err := bridge.VerifyToken(context.Background(), 1, "t"); !errors.Is(err, ErrStandalone) {
		t.Fatalf("expected ErrStandalone, got %v", err)
	}
}

func TestNew_AppendsTrailingSlash(t *testing.T) {
	bridge := New("http://example.com/central", "pw", testProtocol, logging.NopLogger())
	if bridge.baseURL != "http://example.com/central/" {
		t.Errorf("baseURL = %q, want trailing slash", bridge.baseURL)
	}
}
