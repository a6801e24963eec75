package registry

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/xela07ax/erp-backend-prototype/internal/domain"
	"github.com/xela07ax/erp-backend-prototype/internal/pipeline"
	"github.com/xela07ax/erp-backend-prototype/internal/repository/postgres"
)

// Справочник ресурсов. Добавление нового ресурса — это новая запись
// здесь плюс таблица в БД, больше ничего.

var (
	categoriesTable = postgres.TableSpec{
		Table:      "categories",
		Entity:     "category",
		Columns:    []string{"name", "description", "parent_id", "extra"},
		SoftDelete: true,
	}

	companiesTable = postgres.TableSpec{
		Table:      "companies",
		Entity:     "company",
		Columns:    []string{"name", "inn", "address", "email", "phone", "extra"},
		SoftDelete: true,
	}

	warehousesTable = postgres.TableSpec{
		Table:      "warehouses",
		Entity:     "warehouse",
		Columns:    []string{"name", "company_id", "address", "capacity", "extra"},
		SoftDelete: true,
	}

	departmentsTable = postgres.TableSpec{
		Table:      "departments",
		Entity:     "department",
		Columns:    []string{"name", "company_id", "head_id", "extra"},
		SoftDelete: true,
	}

	ordersTable = postgres.TableSpec{
		Table:      "orders",
		Entity:     "order",
		Columns:    []string{"number", "company_id", "status", "total", "issued_at", "extra"},
		SoftDelete: true,
	}

	quotesTable = postgres.TableSpec{
		Table:      "quotes",
		Entity:     "quote",
		Columns:    []string{"number", "company_id", "status", "amount", "valid_until", "extra"},
		SoftDelete: true,
	}

	permissionsTable = postgres.TableSpec{
		Table:      "permissions",
		Entity:     "permission",
		Columns:    []string{"name", "description", "extra"},
		SoftDelete: true,
	}

	usersTable = postgres.TableSpec{
		Table:      "users",
		Entity:     "user",
		Columns:    []string{"email", "username", "password", "permissions", "department_id", "extra"},
		SoftDelete: true,
	}
)

func userBody() map[string]pipeline.FieldRule {
	return map[string]pipeline.FieldRule{
		"email":         {Kind: pipeline.KindString, Required: true, MinLen: 3, MaxLen: 255},
		"username":      {Kind: pipeline.KindString, Required: true, MinLen: 3, MaxLen: 64},
		"password":      {Kind: pipeline.KindString, Required: true, MinLen: 8, MaxLen: 128, Secret: true},
		"permissions":   {Kind: pipeline.KindStringList},
		"department_id": {Kind: pipeline.KindUUID, Nullable: true},
		"extra":         {Kind: pipeline.KindObject},
	}
}

// Definitions возвращает полный справочник ресурсов сервиса.
func Definitions(bcryptCost int) []Definition {
	return []Definition{
		{
			Name:  "categories",
			Table: categoriesTable,
			CreateBody: map[string]pipeline.FieldRule{
				"name":        {Kind: pipeline.KindString, Required: true, MinLen: 1, MaxLen: 255},
				"description": {Kind: pipeline.KindString, MaxLen: 1000},
				"parent_id":   {Kind: pipeline.KindUUID, Nullable: true},
				// Произвольные клиентские атрибуты, уезжают в jsonb как есть.
				"extra": {Kind: pipeline.KindObject},
			},
		},
		{
			Name:  "companies",
			Table: companiesTable,
			CreateBody: map[string]pipeline.FieldRule{
				"name":    {Kind: pipeline.KindString, Required: true, MinLen: 1, MaxLen: 255},
				"inn":     {Kind: pipeline.KindString, MinLen: 10, MaxLen: 12},
				"address": {Kind: pipeline.KindString, MaxLen: 500},
				"email":   {Kind: pipeline.KindString, MaxLen: 255},
				"phone":   {Kind: pipeline.KindString, MaxLen: 32},
				"extra":   {Kind: pipeline.KindObject},
			},
		},
		{
			Name:  "warehouses",
			Table: warehousesTable,
			CreateBody: map[string]pipeline.FieldRule{
				"name":       {Kind: pipeline.KindString, Required: true, MinLen: 1, MaxLen: 255},
				"company_id": {Kind: pipeline.KindUUID, Required: true},
				"address":    {Kind: pipeline.KindString, MaxLen: 500},
				"capacity":   {Kind: pipeline.KindInt, Min: pipeline.Float64(0), AllowZero: true},
				"extra":      {Kind: pipeline.KindObject},
			},
		},
		{
			Name:  "departments",
			Table: departmentsTable,
			CreateBody: map[string]pipeline.FieldRule{
				"name":       {Kind: pipeline.KindString, Required: true, MinLen: 1, MaxLen: 255},
				"company_id": {Kind: pipeline.KindUUID, Required: true},
				"head_id":    {Kind: pipeline.KindUUID, Nullable: true},
				"extra":      {Kind: pipeline.KindObject},
			},
			Children: []ChildLink{
				{
					Name:      "users",
					Table:     usersTable,
					ParentCol: "department_id",
					// PATCH ребенка в рамках отдела не трогает учетные данные.
					UpdateBody: map[string]pipeline.FieldRule{
						"email":       {Kind: pipeline.KindString, MinLen: 3, MaxLen: 255},
						"username":    {Kind: pipeline.KindString, MinLen: 3, MaxLen: 64},
						"permissions": {Kind: pipeline.KindStringList},
					},
					Secrets: []string{"password"},
				},
			},
		},
		{
			Name:  "orders",
			Table: ordersTable,
			CreateBody: map[string]pipeline.FieldRule{
				"number":     {Kind: pipeline.KindString, Required: true, MinLen: 1, MaxLen: 64},
				"company_id": {Kind: pipeline.KindUUID, Required: true},
				"status": {
					Kind: pipeline.KindEnum,
					Enum: []string{"draft", "confirmed", "shipped", "closed"},
					Default: "draft", HasDefault: true,
				},
				"total":     {Kind: pipeline.KindFloat, Min: pipeline.Float64(0), AllowZero: true},
				"issued_at": {Kind: pipeline.KindDate},
				"extra":     {Kind: pipeline.KindObject},
			},
		},
		{
			Name:  "quotes",
			Table: quotesTable,
			CreateBody: map[string]pipeline.FieldRule{
				"number":     {Kind: pipeline.KindString, Required: true, MinLen: 1, MaxLen: 64},
				"company_id": {Kind: pipeline.KindUUID, Required: true},
				"status": {
					Kind: pipeline.KindEnum,
					Enum: []string{"draft", "sent", "accepted", "rejected"},
					Default: "draft", HasDefault: true,
				},
				"amount":      {Kind: pipeline.KindFloat, Min: pipeline.Float64(0), AllowZero: true},
				"valid_until": {Kind: pipeline.KindDate},
				"extra":       {Kind: pipeline.KindObject},
			},
		},
		{
			Name:  "permissions",
			Table: permissionsTable,
			CreateBody: map[string]pipeline.FieldRule{
				"name":        {Kind: pipeline.KindString, Required: true, MinLen: 1, MaxLen: 128},
				"description": {Kind: pipeline.KindString, MaxLen: 1000},
				"extra":       {Kind: pipeline.KindObject},
			},
		},
		{
			Name:       "users",
			Table:      usersTable,
			CreateBody: userBody(),
			// Смена пароля не входит в PATCH: хук хэширования работает
			// только на create, открытый пароль в базу не попадет.
			UpdateBody: map[string]pipeline.FieldRule{
				"email":         {Kind: pipeline.KindString, MinLen: 3, MaxLen: 255},
				"username":      {Kind: pipeline.KindString, MinLen: 3, MaxLen: 64},
				"permissions":   {Kind: pipeline.KindStringList},
				"department_id": {Kind: pipeline.KindUUID, Nullable: true},
				"extra":         {Kind: pipeline.KindObject},
			},
			Secrets:      []string{"password"},
			BeforeCreate: hashPassword(bcryptCost),
		},
	}
}

// hashPassword заменяет открытый пароль на bcrypt-хэш до вставки.
func hashPassword(cost int) pipeline.BeforeCreate {
	return func(values domain.Record) error {
		pw, _ := values["password"].(string)
		hash, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		values["password"] = string(hash)
		return nil
	}
}
