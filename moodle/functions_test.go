package moodle

import (
	"context"
	"net/http"
	"net/url"
	"testing"
)

func TestGetSiteInfo(t *testing.T) {
	site := newFakeSite(t, http.StatusOK,
		`{"sitename":"Test U","siteurl":"https://moodle.example.edu","username":"admin","fullname":"Admin User","userid":2,"release":"4.3 (Build: 20231009)","functions":[{"name":"core_webservice_get_site_info","version":"2023100900"}]}`)
	c := NewClient(site.URL, WithToken("t"))

	info, err := c.GetSiteInfo(context.Background())
	if err != nil {
		t.Fatalf("GetSiteInfo: %v", err)
	}
	if info.SiteName != "Test U" || info.UserID != 2 || len(info.Functions) != 1 {
		t.Errorf("info = %+v", info)
	}
	if got := site.last.Load().Query.Get("wsfunction"); got != FuncGetSiteInfo {
		t.Errorf("wsfunction = %q", got)
	}
}

func TestGetCourses(t *testing.T) {
	tests := []struct {
		name     string
		ids      []int
		wantBody string
	}{
		{"all courses", nil, ""},
		{"by id", []int{2, 3}, "options[ids][0]=2&options[ids][1]=3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site := newFakeSite(t, http.StatusOK, `[{"id":2,"shortname":"ALG","fullname":"Algebra","categoryid":1,"visible":1}]`)
			c := NewClient(site.URL, WithToken("t"))

			courses, err := c.GetCourses(context.Background(), tt.ids...)
			if err != nil {
				t.Fatalf("GetCourses: %v", err)
			}
			if len(courses) != 1 || courses[0].ShortName != "ALG" {
				t.Errorf("courses = %+v", courses)
			}

			body, _ := url.QueryUnescape(site.last.Load().Body)
			if body != tt.wantBody {
				t.Errorf("body = %q, want %q", body, tt.wantBody)
			}
		})
	}
}

func TestGetUsersByField(t *testing.T) {
	site := newFakeSite(t, http.StatusOK, `[{"id":5,"username":"ada","fullname":"Ada Lovelace","email":"ada@example.edu"}]`)
	c := NewClient(site.URL, WithToken("t"))

	users, err := c.GetUsersByField(context.Background(), "username", "ada", "bob")
	if err != nil {
		t.Fatalf("GetUsersByField: %v", err)
	}
	if len(users) != 1 || users[0].Email != "ada@example.edu" {
		t.Errorf("users = %+v", users)
	}

	body, _ := url.QueryUnescape(site.last.Load().Body)
	if body != "field=username&values[0]=ada&values[1]=bob" {
		t.Errorf("body = %q", body)
	}

	if _, err := c.GetUsersByField(context.Background(), ""); !IsValidation(err) {
		t.Errorf("expected ValidationError for empty field, got %v", err)
	}
}

func TestGetEnrolledUsers(t *testing.T) {
	site := newFakeSite(t, http.StatusOK,
		`[{"id":5,"fullname":"Ada Lovelace","roles":[{"roleid":5,"name":"","shortname":"student","sortorder":0}]}]`)
	c := NewClient(site.URL, WithToken("t"))

	users, err := c.GetEnrolledUsers(context.Background(), 4)
	if err != nil {
		t.Fatalf("GetEnrolledUsers: %v", err)
	}
	if len(users) != 1 || len(users[0].Roles) != 1 || users[0].Roles[0].ShortName != "student" {
		t.Errorf("users = %+v", users)
	}
	if site.last.Load().Body != "courseid=4" {
		t.Errorf("body = %q", site.last.Load().Body)
	}
}

func TestGetUsersCourses(t *testing.T) {
	site := newFakeSite(t, http.StatusOK, `[{"id":2,"shortname":"ALG","fullname":"Algebra"}]`)
	c := NewClient(site.URL, WithToken("t"))

	courses, err := c.GetUsersCourses(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetUsersCourses: %v", err)
	}
	if len(courses) != 1 || courses[0].ID != 2 {
		t.Errorf("courses = %+v", courses)
	}
	req := site.last.Load()
	if req.Query.Get("wsfunction") != FuncGetUsersCourses || req.Body != "userid=5" {
		t.Errorf("request = %+v", req)
	}
}

func TestTypedWrappersPropagateRemoteErrors(t *testing.T) {
	site := newFakeSite(t, http.StatusOK,
		`{"exception":"required_capability_exception","errorcode":"nopermissions","message":"Sorry, but you do not currently have permissions to do that"}`)
	c := NewClient(site.URL, WithToken("t"))

	_, err := c.GetEnrolledUsers(context.Background(), 4)
	if !IsRemote(err) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if err.(*RemoteError).ErrorCode != "nopermissions" {
		t.Errorf("ErrorCode = %q", err.(*RemoteError).ErrorCode)
	}
}
