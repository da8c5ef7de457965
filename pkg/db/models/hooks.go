package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (u *User) BeforeCreate(*gorm.DB) error        { assignID(&u.ID); return nil }
func (t *Tenant) BeforeCreate(*gorm.DB) error      { assignID(&t.ID); return nil }
func (p *Product) BeforeCreate(*gorm.DB) error     { assignID(&p.ID); return nil }
func (o *Order) BeforeCreate(*gorm.DB) error       { assignID(&o.ID); return nil }
func (e *OutboxEvent) BeforeCreate(*gorm.DB) error { assignID(&e.ID); return nil }
func (d *OutboxDLQ) BeforeCreate(*gorm.DB) error   { assignID(&d.ID); return nil }

// All lists every persisted model, in dependency order.
func All() []any {
	return []any{&User{}, &Tenant{}, &Product{}, &Order{}, &OutboxEvent{}, &OutboxDLQ{}}
}
