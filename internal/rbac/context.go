package rbac

import "context"

type subjectContextKey struct{}

// ContextWithSubject stores the subject in context.
func ContextWithSubject(ctx context.Context, subject Subject) context.Context {
	return context.WithValue(ctx, subjectContextKey{}, subject)
}

// SubjectFromContext extracts the subject; an anonymous subject is returned when absent.
func SubjectFromContext(ctx context.Context) Subject {
	subject, _ := ctx.Value(subjectContextKey{}).(Subject)
	return subject
}
