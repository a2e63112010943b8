// Copyright 2021 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	pebliss "github.com/corvidre/pebliss"
)

var (
	all        bool
	verbose    bool
	dosHeader  bool
	richHeader bool
	ntHeader   bool
	sections   bool
	resources  bool
	certs      bool
	overlay    bool
	anomalies  bool
)

func prettyPrint(v interface{}) string {
	buf, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<marshal error: %v>", err)
	}
	var out bytes.Buffer
	if err := json.Indent(&out, buf, "", "\t"); err != nil {
		return string(buf)
	}
	return out.String()
}

func isDirectory(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

func dumpOne(filename string, cmd *cobra.Command) {
	if verbose {
		log.Printf("parsing %s", filename)
	}

	img, err := pebliss.Open(filename, &pebliss.Options{})
	if err != nil {
		log.Printf("%s: open failed: %v", filename, err)
		return
	}
	defer img.Close()

	if err := img.Parse(); err != nil {
		log.Printf("%s: parse failed: %v", filename, err)
		return
	}

	if all || dosHeader {
		fmt.Println(prettyPrint(img.DOSHeader))
	}
	if all || richHeader {
		if img.RichHeaderFound {
			fmt.Println(prettyPrint(img.RichHeader))
		}
	}
	if all || ntHeader {
		fmt.Println(prettyPrint(img.NTHeader))
	}
	if all || sections {
		fmt.Println(prettyPrint(img.Sections))
	}
	if all || resources {
		if img.Resources != nil {
			fmt.Println(prettyPrint(img.Resources))
		}
	}
	if all || certs {
		fmt.Println(prettyPrint(img.Certificates))
	}
	if all || overlay {
		ov, err := img.Overlay()
		if err != nil {
			log.Printf("%s: overlay failed: %v", filename, err)
		} else if ov != nil {
			fmt.Printf("overlay: %d bytes\n", ov.Size())
		}
	}
	if all || anomalies {
		for _, a := range img.Anomalies {
			fmt.Println("anomaly:", a)
		}
	}
}

func dump(cmd *cobra.Command, args []string) {
	path := args[0]
	if !isDirectory(path) {
		dumpOne(path, cmd)
		return
	}

	var files []string
	filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			files = append(files, p)
		}
		return nil
	})
	for _, f := range files {
		dumpOne(f, cmd)
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "pebliss-dump",
		Short: "Dumps the structure of a PE/COFF image",
		Long:  "A thin consumer of the pebliss core model, for spot-checking images from the command line",
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("pebliss-dump 0.1.0")
		},
	}

	dumpCmd := &cobra.Command{
		Use:   "dump [file or directory]",
		Short: "Dumps interesting structures of a PE/COFF image",
		Args:  cobra.MinimumNArgs(1),
		Run:   dump,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	dumpCmd.Flags().BoolVar(&dosHeader, "dosheader", false, "dump the DOS header")
	dumpCmd.Flags().BoolVar(&richHeader, "rich", false, "dump the Rich header")
	dumpCmd.Flags().BoolVar(&ntHeader, "ntheader", false, "dump the NT header and data directories")
	dumpCmd.Flags().BoolVar(&sections, "sections", false, "dump the section table")
	dumpCmd.Flags().BoolVar(&resources, "resources", false, "dump the resource directory tree")
	dumpCmd.Flags().BoolVar(&certs, "certs", false, "dump the certificate table")
	dumpCmd.Flags().BoolVar(&overlay, "overlay", false, "report the overlay size")
	dumpCmd.Flags().BoolVar(&anomalies, "anomalies", false, "list heuristic anomalies")
	dumpCmd.Flags().BoolVar(&all, "all", false, "dump everything")

	rootCmd.AddCommand(versionCmd, dumpCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
