package models

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func TestExpandImportRowsNumbersCodesSequentially(t *testing.T) {
	rows := []ImportRow{
		{Quantity: 2, Name: "Jean slim", Size: "38", Color: "blue", Price: decimal.NewFromInt(15000), Season: "winter"},
		{Quantity: 1, Name: "Remera basica", Size: "M", Color: "white", Price: decimal.NewFromInt(4500)},
		{Quantity: 3, Name: "Campera puffer", Size: "L", Color: "black", Price: decimal.NewFromInt(32000), Season: "winter"},
	}

	articles := expandImportRows("shop-1", rows, 1501)

	if len(articles) != 6 {
		t.Fatalf("expected 6 articles, got %d", len(articles))
	}
	for i, a := range articles {
		if a.Code != 1501+i {
			t.Fatalf("article %d: code %d, want %d", i, a.Code, 1501+i)
		}
		if a.StockAvailable != 1 {
			t.Fatalf("article %d: stock %d, want 1", i, a.StockAvailable)
		}
		if !a.CostPrice.IsZero() {
			t.Fatalf("article %d: cost price must start at zero, got %s", i, a.CostPrice)
		}
		if a.ShopId != "shop-1" {
			t.Fatalf("article %d: shop %q", i, a.ShopId)
		}
	}

	// units of the same row share everything but the code
	if articles[0].Name != "Jean slim" || articles[1].Name != "Jean slim" {
		t.Fatalf("first two articles should come from the first row")
	}
	if !articles[5].SalePrice.Equal(decimal.NewFromInt(32000)) {
		t.Fatalf("last article: price %s, want 32000", articles[5].SalePrice)
	}
}

func TestParseImportRowsSkipsHeaderAndBlankRows(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	data := [][]interface{}{
		{"Cantidad", "Nombre", "Descripcion", "Talle", "Color", "Precio", "Temporada"},
		{2, "Jean slim", "tiro alto", "38", "azul", "15000", "invierno"},
		{"", "", "", "", "", "", ""},
		{1, "Remera basica", "", "M", "blanco", "4500,50", ""},
		{0, "Cantidad cero", "", "S", "rojo", "1000", ""},
		{3, "", "", "L", "negro", "2000", ""},
	}
	for i, row := range data {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	rows, skipped, err := parseImportRows(&buf)
	if err != nil {
		t.Fatalf("parseImportRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if skipped != 4 {
		t.Fatalf("expected 4 skipped rows, got %d", skipped)
	}

	if rows[0].Name != "Jean slim" || rows[0].Quantity != 2 {
		t.Fatalf("row 0: %+v", rows[0])
	}
	// comma decimal separators are tolerated
	if !rows[1].Price.Equal(decimal.RequireFromString("4500.50")) {
		t.Fatalf("row 1: price %s, want 4500.50", rows[1].Price)
	}
}
