package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAppointmentType(t *testing.T) {
	got, err := ParseAppointmentType("CONSULTATION")
	assert.NoError(t, err)
	assert.Equal(t, TypeConsultation, got)

	// Canonical names are case-insensitive.
	got, err = ParseAppointmentType("follow_up")
	assert.NoError(t, err)
	assert.Equal(t, TypeFollowUp, got)

	// Display names are accepted too.
	got, err = ParseAppointmentType("Routine Checkup")
	assert.NoError(t, err)
	assert.Equal(t, TypeRoutineCheckup, got)

	_, err = ParseAppointmentType("TELEPORTATION")
	assert.Error(t, err)

	_, err = ParseAppointmentType("")
	assert.Error(t, err)
}

func TestParseAppointmentFor(t *testing.T) {
	got, err := ParseAppointmentFor("Self")
	assert.NoError(t, err)
	assert.Equal(t, ForSelf, got)

	_, err = ParseAppointmentFor("COUSIN")
	assert.Error(t, err)
}

func TestParseSymptom(t *testing.T) {
	got, err := ParseSymptom("SORE_THROAT")
	assert.NoError(t, err)
	assert.Equal(t, SymptomSoreThroat, got)

	got, err = ParseSymptom("Shortness of Breath")
	assert.NoError(t, err)
	assert.Equal(t, SymptomShortnessOfBreath, got)

	_, err = ParseSymptom("HICCUPS")
	assert.Error(t, err)
}
