package storage

import (
	"fmt"
	"time"
)

type staticIDProvider struct {
	ids   []string
	index int
}

func (p *staticIDProvider) NewID() (string, error) {
	if p.index >= len(p.ids) {
		return "", fmt.Errorf("static id provider exhausted after %d ids", len(p.ids))
	}
	id := p.ids[p.index]
	p.index++
	return id, nil
}

type staticKeyProvider struct {
	keys  []string
	index int
}

func (p *staticKeyProvider) NewKey(time.Time) (string, error) {
	if p.index >= len(p.keys) {
		return "", fmt.Errorf("static key provider exhausted after %d keys", len(p.keys))
	}
	key := p.keys[p.index]
	p.index++
	return key, nil
}
