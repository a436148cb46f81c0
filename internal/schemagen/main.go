// Command schemagen writes the JSON schema for stitch configuration files.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	"github.com/macropower/stitch/api/v1beta1/configs"
)

const modulePath = "github.com/macropower/stitch"

var (
	outFile = flag.String("o", "schema.json", "Output file for the generated schema")
	rootDir = flag.String("root", "../../..", "Module root, used to read doc comments")
)

// Packages whose doc comments become schema descriptions.
var commentDirs = []string{"./api", "./pkg/rule"}

func main() {
	flag.Parse()

	out, err := filepath.Abs(*outFile)
	if err != nil {
		log.Fatalf("resolve output path: %v", err)
	}

	err = os.Chdir(*rootDir)
	if err != nil {
		log.Fatalf("change to module root: %v", err)
	}

	r := &jsonschema.Reflector{
		FieldNameTag: "json",
	}
	for _, dir := range commentDirs {
		err = r.AddGoComments(modulePath, dir)
		if err != nil {
			log.Fatalf("read comments from %s: %v", dir, err)
		}
	}

	s := r.Reflect(configs.New())
	s.ID = jsonschema.ID("https://" + modulePath + "/api/v1beta1/configs/config")

	jsData, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		log.Fatalf("marshal JSON schema: %v", err)
	}

	err = os.WriteFile(out, append(jsData, '\n'), 0o600)
	if err != nil {
		log.Fatalf("write schema file: %v", err)
	}
}
