package tools

// AllTools contains all tool specifications for the Moodle MCP server.
// Descriptions follow a structured format for LLM tool selection:
// USE WHEN, NOT FOR, PARAMETERS, RETURNS.
var AllTools = []ToolSpec{
	{
		Name:     "moodle_call_function",
		Method:   "CallFunction",
		Title:    "Call Moodle Function",
		Category: "functions",
		Description: `Call any Moodle web-service function by name.

USE WHEN: No dedicated tool covers the request, e.g. "list assignments in course 4" (mod_assign_get_assignments) or "get the grades of user 7".

NOT FOR: Site info, course lists, participants or uploads (use the dedicated moodle_* tools).

PARAMETERS:
- function: Web-service function name, e.g. core_course_get_contents (required)
- params: Function arguments as nested JSON; arrays and objects are flattened into Moodle form fields (optional)
- filter: jq expression applied to the response, e.g. ".[].fullname" (optional)

RETURNS: The decoded JSON response, or the jq filter output.

NOTE: Some functions change site data. Only functions enabled for the token's service can be called.`,
		ReadOnly:   false,
		Idempotent: false,
		OpenWorld:  true,
	},
	{
		Name:     "moodle_get_site_info",
		Method:   "GetSiteInfo",
		Title:    "Get Site Info",
		Category: "site",
		Description: `Get information about the Moodle site and the token's user.

USE WHEN: User asks "which Moodle is this", "who am I logged in as", "what version is the site", or to check the token works.

PARAMETERS: none

RETURNS: Site name and URL, user name and id, release, and the number of functions the token may call.`,
		ReadOnly:   true,
		Idempotent: true,
		OpenWorld:  true,
	},
	{
		Name:     "moodle_get_courses",
		Method:   "GetCourses",
		Title:    "Get Courses",
		Category: "courses",
		Description: `List Moodle courses.

USE WHEN: User asks "what courses exist", "show course 12", "what is the short name of course 3".

NOT FOR: Courses of one user (use moodle_call_function with core_enrol_get_users_courses).

PARAMETERS:
- ids: Course ids (optional; all visible courses when omitted)

RETURNS: Course id, short name, full name, category and visibility.`,
		ReadOnly:   true,
		Idempotent: true,
		OpenWorld:  true,
	},
	{
		Name:     "moodle_get_enrolled_users",
		Method:   "GetEnrolledUsers",
		Title:    "Get Enrolled Users",
		Category: "users",
		Description: `List the users enrolled in a course.

USE WHEN: User asks "who is in course 5", "list the teachers of course 5", "how many students are enrolled".

PARAMETERS:
- course_id: Course id (required)

RETURNS: User id, full name, email and role short names for each participant.`,
		ReadOnly:   true,
		Idempotent: true,
		OpenWorld:  true,
	},
	{
		Name:     "moodle_upload_file",
		Method:   "UploadFile",
		Title:    "Upload File",
		Category: "files",
		Description: `Upload a local file to the token user's draft file area.

USE WHEN: User wants to attach a file to a later web-service call (e.g. an assignment submission or a course resource).

PARAMETERS:
- path: Local file path (required)
- filepath: Directory inside the draft area (default /)

RETURNS: The stored draft files and the draft item id to pass to other functions.`,
		ReadOnly:   false,
		Idempotent: false,
		OpenWorld:  true,
	},
}
