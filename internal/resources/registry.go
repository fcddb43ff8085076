package resources

import (
	"fmt"

	"github.com/Amund211/coursesync/internal/domain"
)

type Registry struct {
	byKind map[domain.Kind]Resource
}

func NewRegistry(resources ...Resource) *Registry {
	byKind := make(map[domain.Kind]Resource, len(resources))
	for _, resource := range resources {
		if _, ok := byKind[resource.Kind()]; ok {
			panic(fmt.Sprintf("duplicate resource for kind %s", resource.Kind()))
		}
		byKind[resource.Kind()] = resource
	}
	return &Registry{byKind: byKind}
}

func (r *Registry) Lookup(kind domain.Kind) (Resource, bool) {
	resource, ok := r.byKind[kind]
	return resource, ok
}

// Default returns the platform API layout for every known kind
func Default() *Registry {
	return NewRegistry(
		Collection[domain.Subject](domain.KindSubjects, Templates{
			Fetch:  "/subjects",
			Delete: "/subjects/{subjectId}",
			Mutate: "/subjects",
			Item:   "subjectId",
		}),
		Collection[domain.Teacher](domain.KindTeachers, Templates{
			Fetch:  "/teachers",
			Delete: "/teachers/{teacherId}",
			Mutate: "/teachers",
			Item:   "teacherId",
		}),
		Collection[domain.Course](domain.KindCourses, Templates{
			Fetch:  "/courses",
			Delete: "/courses/{courseId}",
			Mutate: "/courses",
			Item:   "courseId",
		}),
		Single[domain.Course](domain.KindCourse, Templates{
			Fetch:  "/courses/{courseId}",
			Delete: "/courses/{courseId}",
			Mutate: "/courses/{courseId}",
			Item:   "courseId",
		}),
		Collection[domain.Lesson](domain.KindLessons, Templates{
			Fetch:  "/courses/{courseId}/lessons",
			Delete: "/courses/{courseId}/lessons/{lessonId}",
			Mutate: "/courses/{courseId}/lessons",
			Item:   "lessonId",
		}),
		Single[domain.Lesson](domain.KindLesson, Templates{
			Fetch:  "/lessons/{lessonId}",
			Delete: "/lessons/{lessonId}",
			Mutate: "/lessons/{lessonId}",
			Item:   "lessonId",
		}),
		Collection[domain.Homework](domain.KindHomeworks, Templates{
			Fetch:  "/lessons/{lessonId}/homeworks",
			Delete: "/lessons/{lessonId}/homeworks/{homeworkId}",
			Mutate: "/lessons/{lessonId}/homeworks",
			Item:   "homeworkId",
		}),
		Single[domain.Test](domain.KindTest, Templates{
			Fetch:  "/lessons/{lessonId}/test",
			Delete: "/lessons/{lessonId}/test",
			Mutate: "/lessons/{lessonId}/test",
		}),
		Collection[domain.Webinar](domain.KindWebinars, Templates{
			Fetch:  "/courses/{courseId}/webinars",
			Delete: "/courses/{courseId}/webinars/{webinarId}",
			Mutate: "/courses/{courseId}/webinars",
			Item:   "webinarId",
		}),
		Collection[domain.Participant](domain.KindParticipants, Templates{
			Fetch:  "/courses/{courseId}/participants",
			Delete: "/courses/{courseId}/participants/{userId}",
			Mutate: "/courses/{courseId}/participants",
			Item:   "userId",
		}),
		Collection[domain.Account](domain.KindAccounts, Templates{
			Fetch:  "/accounts",
			Delete: "/accounts/{accountId}",
			Mutate: "/accounts",
			Item:   "accountId",
		}),
		Single[domain.Account](domain.KindMe, Templates{
			Fetch:  "/account/me",
			Mutate: "/account/me",
		}),
	)
}
