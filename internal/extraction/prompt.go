package extraction

// receiptItemsPrompt is the shared instruction used by all LLM providers
// for extracting line items from Japanese receipts
const receiptItemsPrompt = `Analyze this Japanese receipt image. Extract line items with their names, prices, and tax rates.

Context:
- Currency is Japanese Yen (JPY).
- Prices are usually integers.
- Japanese Consumption Tax is 8% (reduced rate for groceries/takeout) or 10% (standard/dining-in).
- Receipts often mark items with symbols (like '*' or '※') to indicate 8% tax.

Instructions:
1. Extract 'name' (concise).
2. Extract 'price' (the base unit price listed on the line, usually pre-tax).
3. Determine 'taxRate':
   - Set to 0.08 if it looks like a food/grocery item or is marked with a reduced tax symbol.
   - Set to 0.10 otherwise.
4. Do NOT extract the 'Subtotal', 'Total Tax', or 'Grand Total' lines as items.
5. Return ONLY valid JSON in this exact format, with no text before or after and no markdown code blocks:

{ "items": [{ "name": "Bento", "price": 500, "taxRate": 0.08 }, { "name": "Beer", "price": 300, "taxRate": 0.10 }] }`
