package models

import (
	"strings"
	"time"

	id "kycflow/pkg/domain"
	dErrors "kycflow/pkg/domain-errors"
)

// DocumentType is the closed set of artifact categories a case can carry.
type DocumentType string

const (
	DocumentKTPFront             DocumentType = "KTP_FRONT"
	DocumentKTPBack              DocumentType = "KTP_BACK"
	DocumentNationalIDFront      DocumentType = "NATIONAL_ID_FRONT"
	DocumentNationalIDBack       DocumentType = "NATIONAL_ID_BACK"
	DocumentPassport             DocumentType = "PASSPORT"
	DocumentKITAS                DocumentType = "KITAS"
	DocumentKITAP                DocumentType = "KITAP"
	DocumentSelfie               DocumentType = "SELFIE"
	DocumentSelfieWithKTP        DocumentType = "SELFIE_WITH_KTP"
	DocumentBankStatement        DocumentType = "BANK_STATEMENT"
	DocumentRekeningKoran        DocumentType = "REKENING_KORAN"
	DocumentSPTPajak             DocumentType = "SPT_PAJAK"
	DocumentSlipGaji             DocumentType = "SLIP_GAJI"
	DocumentUtilityBill          DocumentType = "UTILITY_BILL"
	DocumentKartuKeluarga        DocumentType = "KARTU_KELUARGA"
	DocumentSuratDomisili        DocumentType = "SURAT_DOMISILI"
	DocumentResume               DocumentType = "RESUME"
	DocumentSuratKeteranganKerja DocumentType = "SURAT_KETERANGAN_KERJA"
	DocumentNPWP                 DocumentType = "NPWP"
)

// ParseDocumentType validates a document category from external input.
func ParseDocumentType(s string) (DocumentType, error) {
	t := DocumentType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "unsupported document type: "+s)
	}
	return t, nil
}

func (t DocumentType) IsValid() bool {
	switch t {
	case DocumentKTPFront, DocumentKTPBack, DocumentNationalIDFront, DocumentNationalIDBack,
		DocumentPassport, DocumentKITAS, DocumentKITAP, DocumentSelfie, DocumentSelfieWithKTP,
		DocumentBankStatement, DocumentRekeningKoran, DocumentSPTPajak, DocumentSlipGaji,
		DocumentUtilityBill, DocumentKartuKeluarga, DocumentSuratDomisili, DocumentResume,
		DocumentSuratKeteranganKerja, DocumentNPWP:
		return true
	}
	return false
}

// Document is one uploaded artifact. Created on upload and never mutated.
type Document struct {
	ID            id.DocumentID
	ApplicationID id.ApplicationID
	Type          DocumentType
	FileName      string
	FileURL       string
	CreatedAt     time.Time
}
