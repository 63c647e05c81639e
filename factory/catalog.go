/*
Package factory provides JSON to Go configuration conversion.

PURPOSE:
  Converts JSON leave-type and directory definitions into leave.Catalog and
  leave.Directory objects. This enables configuration without code changes -
  HR can define leave types and the org chart in JSON, and the factory
  creates the proper Go structs.

WHY JSON?
  - Non-developers can modify leave policies
  - Easy integration with admin UI
  - Version control for policy definitions
  - Database storage of configs

JSON SCHEMA:
  {
    "leave_types": [
      {
        "code": "VL",
        "name": "Vacation Leave",
        "annual_entitlement_days": 15,
        "max_carryover_days": 5,
        "carry_forward_allowed": true,
        "is_paid": true
      }
    ],
    "employees": [
      {
        "id": "emp-100",
        "supervisor": "emp-001",
        "department": "Engineering",
        "active": true
      }
    ]
  }

USAGE:
  catalog, directory, err := factory.ParseConfig(jsonString)

  // Or from a file
  catalog, directory, err := factory.LoadConfig("./config/leave.json")

SEE ALSO:
  - leave/policy.go: LeaveType and Catalog definitions
  - leave/directory.go: Directory definition
*/
package factory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ConfigJSON is the JSON representation of the engine configuration.
type ConfigJSON struct {
	LeaveTypes []LeaveTypeJSON `json:"leave_types"`
	Employees  []EmployeeJSON  `json:"employees,omitempty"`
}

// LeaveTypeJSON is the JSON representation of one leave policy.
type LeaveTypeJSON struct {
	Code                  string  `json:"code"`
	Name                  string  `json:"name"`
	AnnualEntitlementDays float64 `json:"annual_entitlement_days"`
	MaxCarryoverDays      float64 `json:"max_carryover_days,omitempty"`
	CarryForwardAllowed   bool    `json:"carry_forward_allowed,omitempty"`
	IsPaid                bool    `json:"is_paid"`
}

// EmployeeJSON is the JSON representation of one directory entry.
type EmployeeJSON struct {
	ID         string `json:"id"`
	Supervisor string `json:"supervisor,omitempty"`
	Department string `json:"department,omitempty"`
	Active     bool   `json:"active"`
}

// =============================================================================
// CONFIG FACTORY
// =============================================================================

// ParseConfig parses a JSON string into a catalog and directory.
func ParseConfig(jsonStr string) (*leave.StaticCatalog, *leave.StaticDirectory, error) {
	var cj ConfigJSON
	if err := json.Unmarshal([]byte(jsonStr), &cj); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return FromJSON(cj)
}

// LoadConfig reads and parses a JSON config file.
func LoadConfig(path string) (*leave.StaticCatalog, *leave.StaticDirectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(string(data))
}

// FromJSON converts ConfigJSON into a catalog and directory.
func FromJSON(cj ConfigJSON) (*leave.StaticCatalog, *leave.StaticDirectory, error) {
	if len(cj.LeaveTypes) == 0 {
		return nil, nil, fmt.Errorf("config defines no leave types")
	}

	types := make([]leave.LeaveType, 0, len(cj.LeaveTypes))
	for _, tj := range cj.LeaveTypes {
		types = append(types, leave.LeaveType{
			Code:                  leave.LeaveTypeCode(tj.Code),
			Name:                  tj.Name,
			AnnualEntitlementDays: leave.NewDays(tj.AnnualEntitlementDays),
			MaxCarryoverDays:      leave.NewDays(tj.MaxCarryoverDays),
			CarryForwardAllowed:   tj.CarryForwardAllowed,
			IsPaid:                tj.IsPaid,
		})
	}

	catalog, err := leave.NewStaticCatalog(types...)
	if err != nil {
		return nil, nil, err
	}

	directory := leave.NewStaticDirectory()
	for _, ej := range cj.Employees {
		if ej.ID == "" {
			return nil, nil, fmt.Errorf("employee entry missing id")
		}
		directory.Add(leave.EmployeeRecord{
			ID:         leave.EmployeeID(ej.ID),
			Supervisor: leave.EmployeeID(ej.Supervisor),
			Department: ej.Department,
			Active:     ej.Active,
		})
	}

	return catalog, directory, nil
}

// ToJSON converts a catalog and directory back to the JSON schema (for the
// admin UI).
func ToJSON(catalog leave.Catalog, directory *leave.StaticDirectory) ConfigJSON {
	var cj ConfigJSON
	for _, lt := range catalog.List() {
		entitlement, _ := lt.AnnualEntitlementDays.Value.Float64()
		carryover, _ := lt.MaxCarryoverDays.Value.Float64()
		cj.LeaveTypes = append(cj.LeaveTypes, LeaveTypeJSON{
			Code:                  string(lt.Code),
			Name:                  lt.Name,
			AnnualEntitlementDays: entitlement,
			MaxCarryoverDays:      carryover,
			CarryForwardAllowed:   lt.CarryForwardAllowed,
			IsPaid:                lt.IsPaid,
		})
	}
	if directory != nil {
		ctx := context.Background()
		ids, _ := directory.Employees(ctx)
		for _, id := range ids {
			sup, _ := directory.Supervisor(ctx, id)
			dept, _ := directory.Department(ctx, id)
			active, _ := directory.IsActive(ctx, id)
			cj.Employees = append(cj.Employees, EmployeeJSON{
				ID:         string(id),
				Supervisor: string(sup),
				Department: dept,
				Active:     active,
			})
		}
	}
	return cj
}

// =============================================================================
// PRESET CONFIGS
// =============================================================================

// StandardConfigJSON returns a typical starter configuration as JSON.
func StandardConfigJSON() string {
	cj := ConfigJSON{
		LeaveTypes: []LeaveTypeJSON{
			{Code: "VL", Name: "Vacation Leave", AnnualEntitlementDays: 15, MaxCarryoverDays: 5, CarryForwardAllowed: true, IsPaid: true},
			{Code: "SL", Name: "Sick Leave", AnnualEntitlementDays: 10, IsPaid: true},
			{Code: "EL", Name: "Emergency Leave", AnnualEntitlementDays: 5, IsPaid: true},
			{Code: "LWOP", Name: "Leave Without Pay", AnnualEntitlementDays: 30, IsPaid: false},
		},
	}
	data, _ := json.MarshalIndent(cj, "", "  ")
	return string(data)
}
