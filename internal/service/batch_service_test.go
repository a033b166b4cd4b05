package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppendNote(t *testing.T) {
	assert.Equal(t, "used for lunch prep", appendNote("", "used for lunch prep"))
	assert.Equal(t, "opened 08:00\nused for lunch prep", appendNote("opened 08:00", "used for lunch prep"))
}

func TestAppendNoteBlankLeavesExisting(t *testing.T) {
	assert.Equal(t, "opened 08:00", appendNote("opened 08:00", ""))
	assert.Equal(t, "opened 08:00", appendNote("opened 08:00", "   "))
	assert.Equal(t, "", appendNote("", ""))
}
