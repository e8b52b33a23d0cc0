package billing

import (
	"context"
	"fmt"

	"github.com/beevik/etree"
	"github.com/visioncrm/optica-api/internal/domain"
	"github.com/visioncrm/optica-api/internal/domain/entity"
	"github.com/visioncrm/optica-api/internal/domain/money"
)

// Namespaces UBL 2.1 usados en la exportación.
const (
	nsInvoice = "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
	nsCBC     = "urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"
	nsCAC     = "urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
)

// ExportInvoiceXML genera la representación UBL de una factura con sus abonos
// como PrepaidPayment y los totales derivados en LegalMonetaryTotal. Es una
// exportación de lectura: no firma ni envía nada.
func (uc *LedgerUseCase) ExportInvoiceXML(ctx context.Context, tenantID, invoiceID string) ([]byte, error) {
	inv, err := uc.invoiceRepo.LoadForUpdate(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, domain.NewLedgerError(domain.CodeInvoiceNotFound, "factura no encontrada")
	}
	client, err := uc.clientRepo.GetByID(tenantID, inv.ClientID)
	if err != nil {
		return nil, err
	}
	clientName := ""
	if client != nil {
		clientName = client.Name
	}
	return buildInvoiceXML(inv, clientName)
}

func buildInvoiceXML(inv *entity.Invoice, clientName string) ([]byte, error) {
	exp := money.Exponent(inv.Currency)
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("Invoice")
	root.CreateAttr("xmlns", nsInvoice)
	root.CreateAttr("xmlns:cbc", nsCBC)
	root.CreateAttr("xmlns:cac", nsCAC)

	root.CreateElement("cbc:ID").SetText(fmt.Sprintf("%d", inv.InvoiceNumber))
	root.CreateElement("cbc:UUID").SetText(inv.ID)
	root.CreateElement("cbc:IssueDate").SetText(inv.CreatedAt.Format("2006-01-02"))
	root.CreateElement("cbc:DocumentCurrencyCode").SetText(inv.Currency)

	customer := root.CreateElement("cac:AccountingCustomerParty")
	party := customer.CreateElement("cac:Party")
	partyName := party.CreateElement("cac:PartyName")
	partyName.CreateElement("cbc:Name").SetText(clientName)

	for _, p := range inv.Payments {
		prepaid := root.CreateElement("cac:PrepaidPayment")
		prepaid.CreateElement("cbc:ID").SetText(p.ID)
		amount := prepaid.CreateElement("cbc:PaidAmount")
		amount.CreateAttr("currencyID", inv.Currency)
		amount.SetText(p.Amount.Decimal(exp).StringFixed(exp))
		prepaid.CreateElement("cbc:PaidDate").SetText(p.PaidAt.Format("2006-01-02"))
		if p.Method != entity.MethodNone {
			prepaid.CreateElement("cbc:InstructionID").SetText(string(p.Method))
		}
	}

	totals := root.CreateElement("cac:LegalMonetaryTotal")
	appendAmount(totals, "cbc:LineExtensionAmount", inv.TotalAmount, inv.Currency, exp)
	appendAmount(totals, "cbc:AllowanceTotalAmount", inv.CreditAmount, inv.Currency, exp)
	appendAmount(totals, "cbc:PrepaidAmount", inv.AdvanceAmount, inv.Currency, exp)
	appendAmount(totals, "cbc:PayableAmount", inv.RemainingAmount, inv.Currency, exp)

	doc.Indent(2)
	return doc.WriteToBytes()
}

func appendAmount(parent *etree.Element, tag string, m money.Money, currency string, exp int32) {
	el := parent.CreateElement(tag)
	el.CreateAttr("currencyID", currency)
	el.SetText(m.Decimal(exp).StringFixed(exp))
}
