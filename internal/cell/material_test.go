package cell

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/cellwatch/internal/eventlog"
	"github.com/zulandar/cellwatch/internal/jobs"
	"github.com/zulandar/cellwatch/internal/models"
)

func TestAssignSerialAndWorkorder(t *testing.T) {
	h := newHarness(t, 1, nil, nil)
	ctx := context.Background()
	qm, err := h.cell.AddUnallocatedCastingToQueue(ctx, "part1", "castings", -1, "")
	require.NoError(t, err)

	e, err := h.cell.AssignSerial(ctx, qm.MaterialID, "S9")
	require.NoError(t, err)
	assert.Equal(t, models.LogSerialAssign, e.Type)
	e, err = h.cell.AssignWorkorder(ctx, qm.MaterialID, "WO-1")
	require.NoError(t, err)
	assert.Equal(t, models.LogWorkorderAssign, e.Type)

	bySerial, err := h.cell.GetLogForSerial("S9")
	require.NoError(t, err)
	assert.Len(t, bySerial, 3)
	byWorkorder, err := h.cell.GetLogForWorkorder("WO-1")
	require.NoError(t, err)
	assert.Len(t, byWorkorder, 3)

	mat, err := h.cell.log.GetMaterial(qm.MaterialID)
	require.NoError(t, err)
	assert.Equal(t, "S9", mat.Serial)
	assert.Equal(t, "WO-1", mat.Workorder)

	_, err = h.cell.AssignSerial(ctx, qm.MaterialID, " ")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = h.cell.AssignWorkorder(ctx, 999, "WO-1")
	assert.ErrorIs(t, err, eventlog.ErrMaterialNotFound)
}

func TestInspections(t *testing.T) {
	h := newHarness(t, 1, nil, nil)
	ctx := context.Background()
	_, err := h.cell.AddJobs(ctx, jobs.NewJobs{Jobs: []models.Job{job("uniq1", 1, 2, "9")}}, "")
	require.NoError(t, err)
	qm, err := h.cell.AddUnprocessedMaterialToQueue(ctx, "uniq1", 1, "transfer", -1, "")
	require.NoError(t, err)

	e, err := h.cell.SignalInspection(ctx, qm.MaterialID, Inspection{Type: "CMM", Passed: true})
	require.NoError(t, err)
	require.Len(t, e.Material, 1)
	assert.Equal(t, 1, e.Material[0].Process)
	_, err = h.cell.CompleteInspection(ctx, qm.MaterialID, Inspection{Type: "CMM", Process: 1, Passed: true})
	require.NoError(t, err)

	d, err := h.cell.GetMaterialDetails(qm.MaterialID)
	require.NoError(t, err)
	assert.Equal(t, []string{"CMM"}, d.SignaledInspections)
	assert.Equal(t, []string{"CMM"}, d.CompletedInspections)

	_, err = h.cell.SignalInspection(ctx, qm.MaterialID, Inspection{Type: "CMM", Process: 3})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = h.cell.SignalInspection(ctx, qm.MaterialID, Inspection{})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = h.cell.CompleteInspection(ctx, 999, Inspection{Type: "CMM"})
	assert.ErrorIs(t, err, eventlog.ErrMaterialNotFound)
}

func TestAddMaterialNote(t *testing.T) {
	h := newHarness(t, 1, nil, nil)
	ctx := context.Background()
	qm, err := h.cell.AddUnallocatedCastingToQueue(ctx, "part1", "castings", -1, "")
	require.NoError(t, err)

	e, err := h.cell.AddMaterialNote(ctx, qm.MaterialID, "porosity on face 2")
	require.NoError(t, err)
	assert.Equal(t, models.LogGeneral, e.Type)
	assert.Equal(t, "porosity on face 2", e.Details[eventlog.DetailNote])

	_, err = h.cell.AddMaterialNote(ctx, qm.MaterialID, "")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestGetLogEntries(t *testing.T) {
	h := newHarness(t, 1, nil, nil)
	ctx := context.Background()
	_, err := h.cell.AddUnallocatedCastingToQueue(ctx, "part1", "castings", -1, "")
	require.NoError(t, err)

	entries, err := h.cell.GetLogEntries(t0, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	entries, err = h.cell.GetLogEntries(t0.Add(time.Minute), t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = h.cell.GetLogEntries(t0, t0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestOutstandingDemand(t *testing.T) {
	h := newHarness(t, 1, nil, nil)
	ctx := context.Background()
	_, err := h.cell.AddJobs(ctx, jobs.NewJobs{Jobs: []models.Job{job("uniq1", 3, 1, "9")}}, "")
	require.NoError(t, err)

	n, err := h.cell.OutstandingDemand("uniq1", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = h.cell.OutstandingDemand("uniq1", 2)
	assert.ErrorIs(t, err, jobs.ErrInvalidJob)
	_, err = h.cell.OutstandingDemand("missing", 1)
	assert.ErrorIs(t, err, jobs.ErrJobNotFound)
}
