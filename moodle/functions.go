package moodle

import (
	"context"
	"fmt"

	wserrors "github.com/unige/moodle-ws-mcp-server/internal/errors"
)

// Web-service function names used by the typed wrappers
const (
	FuncGetSiteInfo      = "core_webservice_get_site_info"
	FuncGetCourses       = "core_course_get_courses"
	FuncGetUsersByField  = "core_user_get_users_by_field"
	FuncGetEnrolledUsers = "core_enrol_get_enrolled_users"
	FuncGetUsersCourses  = "core_enrol_get_users_courses"
)

// SiteInfo is the response of core_webservice_get_site_info
type SiteInfo struct {
	SiteName       string         `json:"sitename"`
	SiteURL        string         `json:"siteurl"`
	UserName       string         `json:"username"`
	FirstName      string         `json:"firstname"`
	LastName       string         `json:"lastname"`
	FullName       string         `json:"fullname"`
	Lang           string         `json:"lang"`
	UserID         int            `json:"userid"`
	UserPictureURL string         `json:"userpictureurl,omitempty"`
	Release        string         `json:"release,omitempty"`
	Version        string         `json:"version,omitempty"`
	MobileCSSURL   string         `json:"mobilecssurl,omitempty"`
	Functions      []SiteFunction `json:"functions,omitempty"`
	UserCanManage  bool           `json:"usercanmanageownfiles,omitempty"`
	UserQuota      int64          `json:"userquota,omitempty"`
	UserMaxUpload  int64          `json:"usermaxuploadfilesize,omitempty"`
}

// SiteFunction is a function the token may call
type SiteFunction struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Course is an entry of core_course_get_courses or core_enrol_get_users_courses
type Course struct {
	ID         int    `json:"id"`
	ShortName  string `json:"shortname"`
	FullName   string `json:"fullname"`
	IDNumber   string `json:"idnumber,omitempty"`
	CategoryID int    `json:"categoryid,omitempty"`
	Summary    string `json:"summary,omitempty"`
	Format     string `json:"format,omitempty"`
	StartDate  int64  `json:"startdate,omitempty"`
	EndDate    int64  `json:"enddate,omitempty"`
	Visible    int    `json:"visible,omitempty"`
}

// User is an entry of core_user_get_users_by_field or core_enrol_get_enrolled_users
type User struct {
	ID          int    `json:"id"`
	UserName    string `json:"username,omitempty"`
	FirstName   string `json:"firstname,omitempty"`
	LastName    string `json:"lastname,omitempty"`
	FullName    string `json:"fullname"`
	Email       string `json:"email,omitempty"`
	IDNumber    string `json:"idnumber,omitempty"`
	Auth        string `json:"auth,omitempty"`
	Suspended   bool   `json:"suspended,omitempty"`
	FirstAccess int64  `json:"firstaccess,omitempty"`
	LastAccess  int64  `json:"lastaccess,omitempty"`
	Roles       []Role `json:"roles,omitempty"`
}

// Role is a role assignment in an enrolment listing
type Role struct {
	RoleID    int    `json:"roleid"`
	Name      string `json:"name"`
	ShortName string `json:"shortname"`
	SortOrder int    `json:"sortorder,omitempty"`
}

// GetSiteInfo returns information about the site and the token's user
func (c *Client) GetSiteInfo(ctx context.Context) (*SiteInfo, error) {
	result, err := c.Invoke(ctx, FuncGetSiteInfo, nil)
	if err != nil {
		return nil, err
	}

	var info SiteInfo
	if err := result.Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode site info: %w", err)
	}
	return &info, nil
}

// GetCourses returns the courses with the given ids, or all visible courses
// when no ids are given.
func (c *Client) GetCourses(ctx context.Context, ids ...int) ([]Course, error) {
	var args Params
	if len(ids) > 0 {
		args = args.Set("options", map[string]any{"ids": ids})
	}

	result, err := c.Invoke(ctx, FuncGetCourses, args)
	if err != nil {
		return nil, err
	}

	var courses []Course
	if err := result.Decode(&courses); err != nil {
		return nil, fmt.Errorf("failed to decode courses: %w", err)
	}
	return courses, nil
}

// GetUsersByField looks users up by field (id, idnumber, username or email)
func (c *Client) GetUsersByField(ctx context.Context, field string, values ...string) ([]User, error) {
	if field == "" {
		return nil, wserrors.NewValidationError("field", "", "is required")
	}

	args := Params{}.
		Set("field", field).
		Set("values", values)

	result, err := c.Invoke(ctx, FuncGetUsersByField, args)
	if err != nil {
		return nil, err
	}

	var users []User
	if err := result.Decode(&users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, nil
}

// GetEnrolledUsers returns the users enrolled in a course
func (c *Client) GetEnrolledUsers(ctx context.Context, courseID int) ([]User, error) {
	result, err := c.Invoke(ctx, FuncGetEnrolledUsers, Params{}.Set("courseid", courseID))
	if err != nil {
		return nil, err
	}

	var users []User
	if err := result.Decode(&users); err != nil {
		return nil, fmt.Errorf("failed to decode enrolled users: %w", err)
	}
	return users, nil
}

// GetUsersCourses returns the courses a user is enrolled in
func (c *Client) GetUsersCourses(ctx context.Context, userID int) ([]Course, error) {
	result, err := c.Invoke(ctx, FuncGetUsersCourses, Params{}.Set("userid", userID))
	if err != nil {
		return nil, err
	}

	var courses []Course
	if err := result.Decode(&courses); err != nil {
		return nil, fmt.Errorf("failed to decode courses: %w", err)
	}
	return courses, nil
}
