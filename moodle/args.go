package moodle

// CallFunctionArgs contains parameters for calling an arbitrary function
type CallFunctionArgs struct {
	Function string         `json:"function" jsonschema:"Web-service function name, e.g. core_webservice_get_site_info"`
	Params   map[string]any `json:"params,omitempty" jsonschema:"Function arguments as nested JSON; flattened into Moodle form fields"`
	Filter   string         `json:"filter,omitempty" jsonschema:"Optional jq expression applied to the response"`
}

// CallFunctionResult is the result of calling a function
type CallFunctionResult struct {
	Function string `json:"function"`
	Result   any    `json:"result"`
	Filtered bool   `json:"filtered,omitempty"`
}

// GetSiteInfoArgs takes no parameters
type GetSiteInfoArgs struct{}

// GetSiteInfoResult is a compact view of the site info
type GetSiteInfoResult struct {
	SiteName      string `json:"site_name"`
	SiteURL       string `json:"site_url"`
	UserName      string `json:"username"`
	FullName      string `json:"full_name"`
	UserID        int    `json:"user_id"`
	Release       string `json:"release,omitempty"`
	Version       string `json:"version,omitempty"`
	FunctionCount int    `json:"function_count"`
}

// GetCoursesArgs contains parameters for listing courses
type GetCoursesArgs struct {
	IDs []int `json:"ids,omitempty" jsonschema:"Course ids; all visible courses when empty"`
}

// GetCoursesResult is the result of listing courses
type GetCoursesResult struct {
	Courses []CourseSummary `json:"courses"`
	Count   int             `json:"count"`
}

// CourseSummary is a simplified course representation
type CourseSummary struct {
	ID        int    `json:"id"`
	ShortName string `json:"short_name"`
	FullName  string `json:"full_name"`
	Category  int    `json:"category_id,omitempty"`
	Visible   bool   `json:"visible"`
}

// GetEnrolledUsersArgs contains parameters for listing course participants
type GetEnrolledUsersArgs struct {
	CourseID int `json:"course_id" jsonschema:"Course id"`
}

// GetEnrolledUsersResult is the result of listing course participants
type GetEnrolledUsersResult struct {
	CourseID int           `json:"course_id"`
	Users    []UserSummary `json:"users"`
	Count    int           `json:"count"`
}

// UserSummary is a simplified user representation
type UserSummary struct {
	ID       int      `json:"id"`
	FullName string   `json:"full_name"`
	Email    string   `json:"email,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

// UploadFileArgs contains parameters for uploading a file
type UploadFileArgs struct {
	Path     string `json:"path" jsonschema:"Local path of the file to upload"`
	FilePath string `json:"filepath,omitempty" jsonschema:"Directory inside the draft area (default /)"`
}

// UploadFileResult is the result of an upload
type UploadFileResult struct {
	Files  []DraftFile `json:"files"`
	ItemID int         `json:"item_id,omitempty"`
}
