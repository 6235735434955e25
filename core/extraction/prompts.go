package extraction

import "fmt"

const replyFormat = `Answer in exactly this format and nothing else:
%s
<JSON>
%s
<a short explanation for the student>`

// AttendancePrompt asks for one object per subject of an attendance screenshot.
var AttendancePrompt = fmt.Sprintf(`Read this attendance report screenshot.
For every subject return an object with the keys "courseCode", "courseName", "totalClasses",
"attendedClasses" and "percent". Use numbers for counts and percentages, copy codes exactly
and do not invent subjects that are not visible. Return a JSON array.
`+replyFormat, JSONMarker, ExplanationMarker)

// TimetablePrompt asks for one object per class slot of a timetable screenshot.
var TimetablePrompt = fmt.Sprintf(`Read this class timetable screenshot.
For every class slot return an object with the keys "subject" (the course code when shown,
otherwise the subject name), "day" and "time". Return a JSON array ordered by day then time.
Explain the weekly schedule in a student-friendly way in the explanation section.
`+replyFormat, JSONMarker, ExplanationMarker)
