package memory

import (
	"github.com/shift-lab/argus/pkg/domain/interfaces"
)

// Repository is an alias for Memory to match the pattern
type Repository = Memory

type Memory struct {
	event   *eventRepository
	status  *statusRepository
	pattern *patternRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		event:   newEventRepository(),
		status:  newStatusRepository(),
		pattern: newPatternRepository(),
	}
}

func (m *Memory) Event() interfaces.EventRepository {
	return m.event
}

func (m *Memory) Status() interfaces.StatusRepository {
	return m.status
}

func (m *Memory) Pattern() interfaces.PatternRepository {
	return m.pattern
}

func (m *Memory) Close() error {
	return nil
}
