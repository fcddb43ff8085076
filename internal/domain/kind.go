package domain

import "fmt"

// Kind names one family of cache slots in the entity store
type Kind string

const (
	KindSubjects     Kind = "subjects"
	KindTeachers     Kind = "teachers"
	KindCourses      Kind = "courses"
	KindCourse       Kind = "course"
	KindLessons      Kind = "lessons"
	KindLesson       Kind = "lesson"
	KindHomeworks    Kind = "homeworks"
	KindTest         Kind = "test"
	KindWebinars     Kind = "webinars"
	KindParticipants Kind = "participants"
	KindAccounts     Kind = "accounts"
	KindMe           Kind = "me"
)

var AllKinds = []Kind{
	KindSubjects,
	KindTeachers,
	KindCourses,
	KindCourse,
	KindLessons,
	KindLesson,
	KindHomeworks,
	KindTest,
	KindWebinars,
	KindParticipants,
	KindAccounts,
	KindMe,
}

func ParseKind(raw string) (Kind, error) {
	for _, kind := range AllKinds {
		if string(kind) == raw {
			return kind, nil
		}
	}
	return "", fmt.Errorf("%w: unknown kind '%s'", ErrInvalidParams, raw)
}

// Entity is anything the store can hold in a collection slot
type Entity interface {
	EntityID() string
}
