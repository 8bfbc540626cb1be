package main

import (
	"sync"
)

// RefCache keeps the small lookup tables in memory for display-name
// decoration. It is shared across requests, guarded by a mutex, and
// reloaded lazily after Invalidate. A miss in either direction returns
// "", never an error; callers treat "" as no selection.
type RefCache struct {
	mu     sync.RWMutex
	loaded bool
	// table → code → name
	names map[string]map[string]string
}

var refTables = []string{
	"torp_departments", "torp_users", "torp_pline", "torp_pfamily",
	"torp_type", "torp_category", "torp_detail",
	"torp_taskgrp_l1", "torp_taskgrp_l2",
}

var refCache = &RefCache{}

func (c *RefCache) load() {
	names := make(map[string]map[string]string, len(refTables))
	for _, table := range refTables {
		m := make(map[string]string)
		rows, err := db.Query("SELECT code, name FROM " + table)
		if err != nil {
			continue
		}
		for rows.Next() {
			var code, name string
			if err := rows.Scan(&code, &name); err == nil {
				m[code] = name
			}
		}
		rows.Close()
		names[table] = m
	}
	c.names = names
	c.loaded = true
}

func (c *RefCache) ensure() {
	c.mu.RLock()
	ok := c.loaded
	c.mu.RUnlock()
	if ok {
		return
	}
	c.mu.Lock()
	if !c.loaded {
		c.load()
	}
	c.mu.Unlock()
}

// Name maps a code to its display name. Unknown code → "".
func (c *RefCache) Name(table, code string) string {
	if code == "" {
		return ""
	}
	c.ensure()
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.names[table][code]
}

// Code maps a display name back to its code. Unknown name → "".
func (c *RefCache) Code(table, name string) string {
	if name == "" {
		return ""
	}
	c.ensure()
	c.mu.RLock()
	defer c.mu.RUnlock()
	for code, n := range c.names[table] {
		if n == name {
			return code
		}
	}
	return ""
}

// Invalidate drops the cached tables; the next read reloads them.
// Called after any write to a lookup table.
func (c *RefCache) Invalidate() {
	c.mu.Lock()
	c.loaded = false
	c.names = nil
	c.mu.Unlock()
}
