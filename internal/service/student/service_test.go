package student_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/tuition/internal/errs"
	"github.com/tinoosan/tuition/internal/ledger"
	"github.com/tinoosan/tuition/internal/service/student"
	"github.com/tinoosan/tuition/internal/storage/memory"
)

func valid(number string) ledger.Student {
	return ledger.Student{StudentNumber: number, FirstName: "Ana", LastName: "Cruz", GradeLevel: "Grade 5", Section: "Rizal"}
}

func TestCreate_NormalizesAndActivates(t *testing.T) {
	store := memory.New()
	svc := student.New(store, store)
	in := valid(" 2024-a01 ")
	in.GuardianEmail = " Parent@Example.COM "

	got, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, got.ID)
	assert.Equal(t, "2024-A01", got.StudentNumber)
	assert.Equal(t, "parent@example.com", got.GuardianEmail)
	assert.True(t, got.Active)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestCreate_Validation(t *testing.T) {
	svc := student.New(memory.New(), memory.New())
	for _, mutate := range []func(*ledger.Student){
		func(s *ledger.Student) { s.StudentNumber = "  " },
		func(s *ledger.Student) { s.FirstName = "" },
		func(s *ledger.Student) { s.LastName = "" },
		func(s *ledger.Student) { s.GradeLevel = "" },
		func(s *ledger.Student) { s.GuardianEmail = "not-an-email" },
	} {
		in := valid("S-1")
		mutate(&in)
		_, err := svc.Create(context.Background(), in)
		assert.ErrorIs(t, err, errs.ErrInvalid)
	}
}

func TestCreate_DuplicateNumber(t *testing.T) {
	store := memory.New()
	svc := student.New(store, store)
	_, err := svc.Create(context.Background(), valid("S-1"))
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), valid("s-1"))
	assert.ErrorIs(t, err, errs.ErrDuplicateStudent)
}

func TestCreateBatch_AllOrNothing(t *testing.T) {
	store := memory.New()
	svc := student.New(store, store)
	ctx := context.Background()
	_, err := svc.Create(ctx, valid("S-1"))
	require.NoError(t, err)

	bad := valid("S-4")
	bad.LastName = ""
	created, itemErrs, err := svc.CreateBatch(ctx, []ledger.Student{valid("S-2"), valid("S-1"), valid("S-3"), valid("s-3"), bad})
	require.NoError(t, err)
	assert.Nil(t, created)
	require.Len(t, itemErrs, 1)
	assert.Equal(t, 4, itemErrs[0].Index)
	assert.Equal(t, "validation_error", itemErrs[0].Code)

	created, itemErrs, err = svc.CreateBatch(ctx, []ledger.Student{valid("S-2"), valid("S-1"), valid("S-3"), valid("s-3")})
	require.NoError(t, err)
	assert.Nil(t, created)
	indexes := []int{}
	for _, ie := range itemErrs {
		assert.Equal(t, "conflict", ie.Code)
		indexes = append(indexes, ie.Index)
	}
	assert.ElementsMatch(t, []int{1, 2, 3}, indexes)

	all, err := svc.List(ctx, student.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	created, itemErrs, err = svc.CreateBatch(ctx, []ledger.Student{valid("S-2"), valid("S-3")})
	require.NoError(t, err)
	assert.Empty(t, itemErrs)
	assert.Len(t, created, 2)

	_, _, err = svc.CreateBatch(ctx, nil)
	assert.ErrorIs(t, err, errs.ErrInvalid)
}

func TestUpdate_StudentNumberImmutable(t *testing.T) {
	store := memory.New()
	svc := student.New(store, store)
	ctx := context.Background()
	st, err := svc.Create(ctx, valid("S-1"))
	require.NoError(t, err)

	st.Section = "Mabini"
	got, err := svc.Update(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, "Mabini", got.Section)
	assert.Equal(t, st.CreatedAt, got.CreatedAt)

	st.StudentNumber = "S-9"
	_, err = svc.Update(ctx, st)
	assert.ErrorIs(t, err, errs.ErrInvalid)

	_, err = svc.Update(ctx, valid("S-1"))
	assert.ErrorIs(t, err, errs.ErrInvalid)
}

func TestDeactivateAndFilter(t *testing.T) {
	store := memory.New()
	svc := student.New(store, store)
	ctx := context.Background()
	a, err := svc.Create(ctx, valid("S-1"))
	require.NoError(t, err)
	b := valid("S-2")
	b.FirstName, b.GradeLevel = "Ben", "Grade 6"
	_, err = svc.Create(ctx, b)
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, a.ID))
	require.NoError(t, svc.Deactivate(ctx, a.ID))
	got, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	active, err := svc.List(ctx, student.Filter{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Ben", active[0].FirstName)

	byGrade, err := svc.List(ctx, student.Filter{GradeLevel: "grade 5"})
	require.NoError(t, err)
	assert.Len(t, byGrade, 1)

	byQuery, err := svc.List(ctx, student.Filter{Query: "ben cruz"})
	require.NoError(t, err)
	assert.Len(t, byQuery, 1)

	assert.ErrorIs(t, svc.Deactivate(ctx, uuid.New()), errs.ErrNotFound)
}
