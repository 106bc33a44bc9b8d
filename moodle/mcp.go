package moodle

import (
	"context"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// MCP Tool wrapper methods
// These methods wrap the client methods with Args/Result types for MCP integration.

var functionNamePattern = regexp.MustCompile(`^[a-z][a-z0-9]*(_[a-z0-9]+)+$`)

// Validate checks the function name before anything is sent
func (a CallFunctionArgs) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Function,
			validation.Required,
			validation.Match(functionNamePattern).Error("must be a web-service function name such as core_webservice_get_site_info"),
		),
	)
}

// CallFunctionMCP is the MCP wrapper for Invoke
func (c *Client) CallFunctionMCP(ctx context.Context, args CallFunctionArgs) (CallFunctionResult, error) {
	if err := args.Validate(); err != nil {
		return CallFunctionResult{}, err
	}

	var params any = Params{}
	if len(args.Params) > 0 {
		params = args.Params
	}

	result, err := c.Invoke(ctx, args.Function, params)
	if err != nil {
		return CallFunctionResult{}, err
	}

	out := CallFunctionResult{Function: args.Function, Result: result.Value()}
	if args.Filter == "" {
		return out, nil
	}

	values, err := result.Query(args.Filter)
	if err != nil {
		return CallFunctionResult{}, err
	}
	out.Filtered = true
	if len(values) == 1 {
		out.Result = values[0]
	} else {
		out.Result = values
	}
	return out, nil
}

// GetSiteInfoMCP is the MCP wrapper for GetSiteInfo
func (c *Client) GetSiteInfoMCP(ctx context.Context, _ GetSiteInfoArgs) (GetSiteInfoResult, error) {
	info, err := c.GetSiteInfo(ctx)
	if err != nil {
		return GetSiteInfoResult{}, err
	}

	return GetSiteInfoResult{
		SiteName:      info.SiteName,
		SiteURL:       info.SiteURL,
		UserName:      info.UserName,
		FullName:      info.FullName,
		UserID:        info.UserID,
		Release:       info.Release,
		Version:       info.Version,
		FunctionCount: len(info.Functions),
	}, nil
}

// GetCoursesMCP is the MCP wrapper for GetCourses
func (c *Client) GetCoursesMCP(ctx context.Context, args GetCoursesArgs) (GetCoursesResult, error) {
	courses, err := c.GetCourses(ctx, args.IDs...)
	if err != nil {
		return GetCoursesResult{}, err
	}

	// Convert to summary format
	summaries := make([]CourseSummary, 0, len(courses))
	for _, co := range courses {
		summaries = append(summaries, CourseSummary{
			ID:        co.ID,
			ShortName: co.ShortName,
			FullName:  co.FullName,
			Category:  co.CategoryID,
			Visible:   co.Visible != 0,
		})
	}

	return GetCoursesResult{Courses: summaries, Count: len(summaries)}, nil
}

// GetEnrolledUsersMCP is the MCP wrapper for GetEnrolledUsers
func (c *Client) GetEnrolledUsersMCP(ctx context.Context, args GetEnrolledUsersArgs) (GetEnrolledUsersResult, error) {
	err := validation.ValidateStruct(&args,
		validation.Field(&args.CourseID, validation.Required, validation.Min(1)),
	)
	if err != nil {
		return GetEnrolledUsersResult{}, err
	}

	users, err := c.GetEnrolledUsers(ctx, args.CourseID)
	if err != nil {
		return GetEnrolledUsersResult{}, err
	}

	summaries := make([]UserSummary, 0, len(users))
	for _, u := range users {
		summary := UserSummary{
			ID:       u.ID,
			FullName: u.FullName,
			Email:    u.Email,
		}
		for _, r := range u.Roles {
			summary.Roles = append(summary.Roles, r.ShortName)
		}
		summaries = append(summaries, summary)
	}

	return GetEnrolledUsersResult{
		CourseID: args.CourseID,
		Users:    summaries,
		Count:    len(summaries),
	}, nil
}

// UploadFileMCP is the MCP wrapper for Upload
func (c *Client) UploadFileMCP(ctx context.Context, args UploadFileArgs) (UploadFileResult, error) {
	err := validation.ValidateStruct(&args,
		validation.Field(&args.Path, validation.Required),
	)
	if err != nil {
		return UploadFileResult{}, err
	}

	raw, err := c.Upload(ctx, args.Path, args.FilePath)
	if err != nil {
		return UploadFileResult{}, err
	}

	files, err := ParseUploadResponse(raw)
	if err != nil {
		return UploadFileResult{}, err
	}

	out := UploadFileResult{Files: files}
	if len(files) > 0 {
		out.ItemID = files[0].ItemID
	}
	return out, nil
}
