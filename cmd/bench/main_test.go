package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Neumenon/ionhash/ionhash"
)

func fixedTimer(ns int64) timer {
	return func([]byte, ionhash.HashFunctionProvider) (int64, error) {
		return ns, nil
	}
}

func TestMeasure(t *testing.T) {
	doc := []byte("1 2")
	result, err := measure("ints", doc, []string{"md5"}, fixedTimer(3))
	if err != nil {
		t.Fatalf("measure: %v", err)
	}
	// 0b 20 01 0e 0b 20 02 0e
	if result.CanonicalBytes != 8 {
		t.Errorf("CanonicalBytes = %d, want 8", result.CanonicalBytes)
	}
	if result.Values != 2 {
		t.Errorf("Values = %d, want 2", result.Values)
	}
	if got := result.Throughput["md5"]; got != 1000 {
		t.Errorf("Throughput = %v, want 1000", got)
	}
	if got := result.Overhead(); got < 166 || got > 167 {
		t.Errorf("Overhead = %v, want ~166.7", got)
	}
}

func TestMeasure_InvalidIon(t *testing.T) {
	if _, err := measure("bad", []byte("[1"), nil, fixedTimer(1)); err == nil {
		t.Error("expected error")
	}
}

func TestWriteReports(t *testing.T) {
	results := []CaseResult{
		{Name: "a.ion", InputBytes: 10, CanonicalBytes: 20, Values: 1, Throughput: map[string]float64{"blake3": 12.5}},
	}

	var csv bytes.Buffer
	writeCSV(&csv, results, []string{"blake3"})
	want := "name,input_bytes,canonical_bytes,overhead_pct,values,blake3_mbps\na.ion,10,20,100.0,1,12.5\n"
	if csv.String() != want {
		t.Errorf("csv:\n%s\nwant:\n%s", csv.String(), want)
	}

	var md bytes.Buffer
	writeMarkdown(&md, results, []string{"blake3"})
	if !strings.Contains(md.String(), "| a.ion | 10 | 20 | +100.0% | 1 | 12.5 |") {
		t.Errorf("markdown:\n%s", md.String())
	}
}

func TestRun_Usage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(nil, &stdout, &stderr); code != 2 {
		t.Errorf("no inputs exit = %d, want 2", code)
	}
	if code := run([]string{"--algorithms", "crc32", "x.ion"}, &stdout, &stderr); code != 2 {
		t.Errorf("bad algorithm exit = %d, want 2", code)
	}
}
