// import_clients genera un script SQL de carga de clientes a partir del
// CSV exportado por el sistema anterior (separado por ';', ISO-8859-1).
//
// Uso: go run ./cmd/import_clients <tenant_id> [ruta/clientes.csv]
// Por defecto busca clientes.csv en el directorio actual.
// Escribe: internal/infrastructure/postgres/migrations/900_seed_clients.sql
//
// Columnas esperadas: documento;nombre;email;telefono
package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "uso: import_clients <tenant_id> [clientes.csv]")
		os.Exit(1)
	}
	tenantID := os.Args[1]
	csvPath := "clientes.csv"
	if len(os.Args) > 2 {
		csvPath = os.Args[2]
	}
	f, err := os.Open(csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Abrir CSV: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	// El sistema anterior exporta en ISO-8859-1; convertimos a UTF-8 al leer.
	reader := csv.NewReader(transform.NewReader(f, charmap.ISO8859_1.NewDecoder()))
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Leer CSV: %v\n", err)
		os.Exit(1)
	}

	type row struct{ document, name, email, phone string }
	var rows []row
	for i, rec := range records {
		if i == 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "documento") {
			continue // cabecera
		}
		if len(rec) < 2 || strings.TrimSpace(rec[1]) == "" {
			continue
		}
		r := row{
			document: strings.TrimSpace(rec[0]),
			name:     strings.TrimSpace(rec[1]),
		}
		if len(rec) > 2 {
			r.email = strings.TrimSpace(rec[2])
		}
		if len(rec) > 3 {
			r.phone = strings.TrimSpace(rec[3])
		}
		rows = append(rows, r)
	}

	moduleRoot := findModuleRoot()
	outPath := filepath.Join(moduleRoot, "internal", "infrastructure", "postgres", "migrations", "900_seed_clients.sql")
	out, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Crear archivo: %v\n", err)
		os.Exit(1)
	}
	defer out.Close()

	fmt.Fprintf(out, "-- Clientes importados del sistema anterior (tenant %s)\n", tenantID)
	fmt.Fprintf(out, "-- Generado desde %s\n\n", filepath.Base(csvPath))
	for _, r := range rows {
		fmt.Fprintf(out, "INSERT INTO clients (id, tenant_id, name, document_id, email, phone)\n")
		fmt.Fprintf(out, "VALUES ('%s', '%s', '%s', '%s', '%s', '%s')\n",
			uuid.NewString(), escapeSQL(tenantID), escapeSQL(r.name),
			escapeSQL(r.document), escapeSQL(r.email), escapeSQL(r.phone))
		out.WriteString("ON CONFLICT DO NOTHING;\n")
	}

	fmt.Printf("Generado %s: %d clientes\n", outPath, len(rows))
}

func escapeSQL(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func findModuleRoot() string {
	dir, _ := os.Getwd()
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}
