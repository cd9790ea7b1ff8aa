package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/wwwzy/EDAgent/internal/storage"
)

func main() {
	path := flag.String("db", "edagent.db", "database file")
	flag.Parse()

	db, err := gorm.Open(sqlite.Open(*path), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	fmt.Println("--- Verifying EDAgent Database ---")

	// 表不存在时 Count 会报错，先检查
	if !db.Migrator().HasTable(&storage.RunRecord{}) {
		fmt.Println("Table 'run_records' does not exist yet.")
	} else {
		var runCount int64
		db.Model(&storage.RunRecord{}).Count(&runCount)
		fmt.Printf("Total Run Records: %d\n", runCount)

		if runCount > 0 {
			var runs []storage.RunRecord
			db.Order("started_at desc").Limit(5).Find(&runs)
			fmt.Println("Latest 5 Runs (Local Time):")
			for _, r := range runs {
				fmt.Printf("  [%s] %s %s outcome=%s rounds=%d tools=%d\n",
					r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Kind, r.Dataset, r.Outcome, r.Iterations, r.ToolCalls)
			}
		}
	}

	fmt.Println("\n------------------------------------")

	if !db.Migrator().HasTable(&storage.AuditRecord{}) {
		fmt.Println("Table 'audit_records' does not exist yet.")
		return
	}
	var auditCount int64
	db.Model(&storage.AuditRecord{}).Count(&auditCount)
	fmt.Printf("Total Audit Records: %d\n", auditCount)

	if auditCount > 0 {
		var audits []storage.AuditRecord
		db.Order("started_at desc").Limit(5).Find(&audits)
		fmt.Println("Latest 5 Tool Calls (Local Time):")
		for _, a := range audits {
			params := a.ParamsJSON
			if len(params) > 50 {
				params = params[:47] + "..."
			}
			fmt.Printf("  [%s] %s %s [%s/%s] %s\n",
				a.StartedAt.Local().Format("2006-01-02 15:04:05"), a.Dataset, a.Action, a.Status, a.ResultStatus, params)
		}
	}
}
