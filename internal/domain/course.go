package domain

import "time"

type Subject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (s Subject) EntityID() string {
	return s.ID
}

type Teacher struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Bio         string   `json:"bio,omitempty"`
	SubjectIDs  []string `json:"subjectIds,omitempty"`
	AvatarURL   string   `json:"avatarUrl,omitempty"`
	VKProfileID string   `json:"vkProfileId,omitempty"`
}

func (t Teacher) EntityID() string {
	return t.ID
}

type Course struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	SubjectID   string    `json:"subjectId"`
	TeacherIDs  []string  `json:"teacherIds,omitempty"`
	PriceRub    int64     `json:"price"`
	Purchased   bool      `json:"purchased"`
	Hidden      bool      `json:"hidden"`
	StartsAt    time.Time `json:"startsAt"`
	EndsAt      time.Time `json:"endsAt"`
}

func (c Course) EntityID() string {
	return c.ID
}

type Lesson struct {
	ID          string    `json:"id"`
	CourseID    string    `json:"courseId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	VideoURL    string    `json:"videoUrl,omitempty"`
	Position    int       `json:"position"`
	StartsAt    time.Time `json:"startsAt"`
	Locked      bool      `json:"locked"`
}

func (l Lesson) EntityID() string {
	return l.ID
}

type HomeworkStatus string

const (
	HomeworkNotSent  HomeworkStatus = "notSent"
	HomeworkSent     HomeworkStatus = "sent"
	HomeworkReviewed HomeworkStatus = "reviewed"
)

type Homework struct {
	ID        string         `json:"id"`
	LessonID  string         `json:"lessonId"`
	StudentID string         `json:"studentId"`
	Status    HomeworkStatus `json:"status"`
	Files     []string       `json:"files,omitempty"`
	Mark      *int           `json:"mark,omitempty"`
	Comment   string         `json:"comment,omitempty"`
}

func (h Homework) EntityID() string {
	return h.ID
}

type Question struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options,omitempty"`
}

type Test struct {
	ID        string     `json:"id"`
	LessonID  string     `json:"lessonId"`
	Questions []Question `json:"questions"`
	Passed    bool       `json:"passed"`
	Score     *int       `json:"score,omitempty"`
}

func (t Test) EntityID() string {
	return t.ID
}

type Webinar struct {
	ID        string    `json:"id"`
	CourseID  string    `json:"courseId"`
	Name      string    `json:"name"`
	StartsAt  time.Time `json:"startsAt"`
	Duration  int       `json:"durationMinutes"`
	StreamURL string    `json:"streamUrl,omitempty"`
}

func (w Webinar) EntityID() string {
	return w.ID
}

type Participant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	JoinedAt  time.Time `json:"joinedAt"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
}

func (p Participant) EntityID() string {
	return p.ID
}
