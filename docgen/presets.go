package docgen

// Preset returns the built-in template and dataset for a doc type.
func Preset(docType string) (string, []Item, bool) {
	preset, ok := presets[docType]
	if !ok {
		return "", nil, false
	}
	return preset.template, preset.items, true
}

// PresetTypes lists the doc types with a built-in dataset.
func PresetTypes() []string {
	return []string{"policies", "employees", "products", "contracts"}
}

type preset struct {
	template string
	items    []Item
}

var presets = map[string]preset{
	"products": {
		template: `Generate product documentation for Oilwell Corporation.

Product Type: {product_type}

Format as markdown with sections:
# [Product Name]
## Overview
[2-3 paragraphs]
## Features
- [Feature 1]
- [Feature 2]
- [Feature 3]
## Applications
[List applications]
`,
		items: []Item{
			{"product_type": "Centrifugal Pump - Multistage"},
			{"product_type": "Pressure Sensor - Digital Transmitter"},
			{"product_type": "Leak Detection and Repair - Tools"},
			{"product_type": "Wellhead Control Valve - High Pressure Gate Valve"},
			{"product_type": "Downhole Drilling Tool - Rotary Steerable System"},
		},
	},

	"employees": {
		template: `Generate an employee profile for Oilwell Corporation.

Employee Name: {employee_name}
Department: {department}
Position: {position}
Hire Date: {hire_date}

Format as markdown with sections:
# Employee Profile: {employee_name}
## Summary
[Brief summary]
## Responsibilities
- [Responsibility 1]
- [Responsibility 2]
- [Responsibility 3]
## Skills
- [Skill 1]
- [Skill 2]
- [Skill 3]
`,
		items: []Item{
			{"employee_name": "Nene Smith", "department": "c-suite", "position": "CEO", "hire_date": "2022-07-01"},
			{"employee_name": "Chi Doe", "department": "c-suite", "position": "CTO", "hire_date": "2018-03-16"},
			{"employee_name": "John Doe", "department": "Engineering", "position": "Drilling Engineer", "hire_date": "2018-03-15"},
			{"employee_name": "Jane Smith", "department": "Safety", "position": "Safety Officer", "hire_date": "2020-07-01"},
			{"employee_name": "Carlos Martinez", "department": "Operations", "position": "Field Supervisor", "hire_date": "2016-09-10"},
		},
	},

	"contracts": {
		template: `Generate a business contract summary for Oilwell Corporation.

Contract Title: {title}
Parties: {parties}
Effective Date: {effective_date}
Term: {term}

Format as markdown with sections:
# Contract: {title}
## Overview
[Summary of the contract]
## Key Terms
[List of 5 major clauses]
## Obligations
[List obligations of both parties]
## Renewal & Termination
[Summarize renewal and termination terms]
`,
		items: []Item{
			{"title": "Supply Agreement - ABC Industrial Co.", "parties": "Oilwell Corporation and ABC Industrial Co.", "effective_date": "2024-01-01", "term": "2 years"},
			{"title": "Maintenance Contract - North Drilling Services", "parties": "Oilwell Corporation and North Drilling Services Ltd.", "effective_date": "2023-06-15", "term": "3 years"},
			{"title": "Logistics and Transportation Agreement - TransMove Logistics", "parties": "Oilwell Corporation and TransMove Logistics Ltd.", "effective_date": "2024-05-10", "term": "1 year, renewable"},
			{"title": "Consulting Services Agreement - PetroConsult Energy Advisors", "parties": "Oilwell Corporation and PetroConsult Energy Advisors Inc.", "effective_date": "2025-01-01", "term": "18 months"},
			{"title": "Software Licensing Agreement - TechWave Solutions", "parties": "Oilwell Corporation and TechWave Solutions LLC", "effective_date": "2024-09-01", "term": "3 years"},
		},
	},

	"policies": {
		template: `Generate a company policy document for Oilwell Corporation.

Policy Title: {title}
Department Responsible: {department}
Effective Date: {effective_date}
Review Cycle: {review_cycle}

Format as markdown with these sections:

# Policy: {title}

## Purpose
[Explain why this policy exists and its objectives.]

## Scope
[Define who and what this policy applies to.]

## Policy Statement
[State the key rules, standards, or expectations clearly.]

## Procedures
[List the specific procedures or steps employees should follow.]

## Responsibilities
[Define the roles and responsibilities of employees, managers, and departments.]

## Compliance
[Outline how compliance will be monitored and enforced.]

## Review & Revision
[Describe the review cycle and update procedures.]
`,
		items: []Item{
			{"title": "Workplace Health and Safety Policy", "department": "Health, Safety, and Environment (HSE)", "effective_date": "2025-01-01", "review_cycle": "Annual"},
			{"title": "Code of Conduct and Ethics Policy", "department": "Human Resources / Compliance", "effective_date": "2025-01-01", "review_cycle": "Every 2 years"},
			{"title": "Data Protection and Privacy Policy", "department": "Information Technology (IT)", "effective_date": "2025-02-01", "review_cycle": "Annual"},
			{"title": "Environmental Sustainability Policy", "department": "Health, Safety, and Environment (HSE)", "effective_date": "2025-03-01", "review_cycle": "Every 3 years"},
			{"title": "Equal Employment Opportunity Policy", "department": "Human Resources", "effective_date": "2025-01-15", "review_cycle": "Every 2 years"},
		},
	},
}
