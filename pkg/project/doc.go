// Package project scaffolds departure projects.
//
// A project is a directory with a config file and a migrations directory:
//
//	project-root/
//	├── departure.yaml          # Connection and pt-osc settings
//	└── db/
//	    └── migrations/
//	        └── 20250101120000_add_some_id_to_comments.sql
//
// Initialize writes a commented departure.yaml (the password is left as a ${DB_PASSWORD}
// reference) and NewMigration creates timestamped migration files with empty
// -- +up and -- +down sections.
package project
