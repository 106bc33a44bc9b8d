package moodle

import (
	"context"
	"net/http"
	"net/url"
	"testing"
)

func TestFunctionName(t *testing.T) {
	tests := []struct {
		method  string
		want    string
		wantErr bool
	}{
		{method: "core_webservice_get_site_info", want: "core_webservice_get_site_info"},
		{method: "CoreWebserviceGetSiteInfo", want: "core_webservice_get_site_info"},
		{method: "coreCourseGetCourses", want: "core_course_get_courses"},
		{method: "ModAssignGetAssignments", want: "mod_assign_get_assignments"},
		{method: "  core_user_get_users  ", want: "core_user_get_users"},
		{method: "ModH5pactivityGetAttempts", want: "mod_h5pactivity_get_attempts"},
		{method: "CoreH5pGetTrustedH5pFile", want: "core_h5p_get_trusted_h5p_file"},
		{method: "ToolMobileGetAutologinKey", want: "tool_mobile_get_autologin_key"},
		{method: "Oauth2GetToken", want: "oauth2_get_token"},
		{method: "CoreGetHTMLFragment", want: "core_get_html_fragment"},
		{method: "mod_h5pactivity_get_attempts", want: "mod_h5pactivity_get_attempts"},
		{method: "", wantErr: true},
		{method: "   ", wantErr: true},
		{method: "GetToken", wantErr: true},
		{method: "get_token", wantErr: true},
		{method: "setToken", wantErr: true},
		{method: "configure_proxy", wantErr: true},
		{method: "NewToken", wantErr: true},
		{method: "upload", wantErr: true},
		{method: "Invoke", wantErr: true},
		{method: "call", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			got, err := FunctionName(tt.method)
			if tt.wantErr {
				if !IsValidation(err) {
					t.Errorf("expected ValidationError, got %q, %v", got, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FunctionName: %v", err)
			}
			if got != tt.want {
				t.Errorf("FunctionName(%q) = %q, want %q", tt.method, got, tt.want)
			}
		})
	}
}

func TestCall(t *testing.T) {
	site := newFakeSite(t, http.StatusOK, `{"sitename":"Test U"}`)
	c := NewClient(site.URL, WithToken("t"))

	result, err := c.Call(context.Background(), "CoreWebserviceGetSiteInfo")
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result.String("sitename") != "Test U" {
		t.Errorf("result = %v", result.Value())
	}

	req := site.last.Load()
	if got := req.Query.Get("wsfunction"); got != "core_webservice_get_site_info" {
		t.Errorf("wsfunction = %q", got)
	}
	if req.Body != "" {
		t.Errorf("body = %q, want empty parameter set", req.Body)
	}
}

func TestCallForwardsFirstArgument(t *testing.T) {
	site := newFakeSite(t, http.StatusOK, `[]`)
	c := NewClient(site.URL, WithToken("t"))

	_, err := c.Call(context.Background(), "core_enrol_get_enrolled_users",
		map[string]any{"courseid": 4},
		map[string]any{"ignored": true})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}

	got, _ := url.QueryUnescape(site.last.Load().Body)
	if got != "courseid=4" {
		t.Errorf("body = %q, want courseid=4", got)
	}
}

func TestCallRejectsClientMethods(t *testing.T) {
	site := newFakeSite(t, http.StatusOK, `{}`)
	c := NewClient(site.URL, WithToken("t"))

	for _, name := range clientMethods {
		if _, err := c.Call(context.Background(), name); !IsValidation(err) {
			t.Errorf("Call(%q) should be rejected, got %v", name, err)
		}
	}
	if n := site.requests.Load(); n != 0 {
		t.Errorf("requests = %d, want 0", n)
	}
}
